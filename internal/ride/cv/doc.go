// Package cv adapts OpenCV (via gocv) to the ride pipeline's collaborator
// interfaces: video decoding, Farneback dense optical flow and an ONNX
// YOLOv8 object detector. Everything that needs cgo lives here so the
// rest of the module builds without OpenCV installed.
package cv
