// Command tracker runs the courier tracking pipeline against a replayed
// track, and a development ingest endpoint to receive its updates.
package main

func main() {
	Execute()
}
