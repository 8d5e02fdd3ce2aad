// Command vcompdemo renders a scenario of synthetic video streams through the
// vcomp compositor and writes the output frames as PNG files.
package main

func main() {
	Execute()
}
