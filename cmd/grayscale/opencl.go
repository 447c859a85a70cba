//go:build opencl

package main

import _ "github.com/gogpu/grayscale/internal/opencl" // register the opencl backend
