// Package pipeline is the composition root for ride analysis.
//
// It walks a video window by window through the sampler, motion, geometry,
// hazard and token stages, classifies the resulting descriptions and hands
// them to the verdict and advice packages. It owns no domain logic; the
// collaborators that decode video, estimate dense flow, detect objects,
// measure frame colour and assign risk tiers are injected through small
// interfaces so the engine builds and tests without OpenCV.
package pipeline
