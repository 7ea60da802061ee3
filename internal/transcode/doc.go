// Package transcode converts uploaded media into the canonical note format.
//
// The canonical format is MP4 with the moov atom up front: H.264 (yuv420p)
// video with AAC audio for video notes, and AAC audio alone for audio notes.
// FFmpeg runs the conversion as a separate OS process in its own process
// group so a hang or crash never reaches the request path; Pool bounds how
// many conversions run at once and turns panics into ordinary failures.
package transcode
