// Command grayscale converts a color image to grayscale on a GPU.
//
// Usage:
//
//	grayscale [input [output]] [flags]
//
// The defaults read image.jpg and write gray_image.jpg. On failure the
// failing step is printed as "Error: <step> (Error code: <n>)" and the
// command exits with status 1 without creating the output file.
package main

import "os"

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
