// Aita - Sandbox Report Aggregation Engine
// Ingest. Correlate. Freeze.
package main

func main() {
	Execute()
}
