// Package transcode provides readable byte streams backed by external
// transcoder processes (ffmpeg, lame, sox, flac, ...).
//
// A Stream spawns a process and exposes its stdout as an io.Reader. When
// an upstream source is given, it is copied into the process stdin
// through a bounded in-memory pipe, never through temporary files. Since
// a Stream is itself a reader, streams chain naturally:
//
//	decode, err := transcode.New(exec.Command("ffmpeg", "-i", "-", "-f", "wav", "-"), flacFile)
//	if err != nil {
//	    return err
//	}
//	encode, err := transcode.New(exec.Command("lame", "-b", "128", "-", "-"), decode)
//	if err != nil {
//	    decode.Close()
//	    return err
//	}
//	defer encode.Close()
//	io.Copy(w, encode)
//
// # Data flow
//
// Every Stream runs up to three goroutines next to the caller:
//   - a diagnostic drainer that reads stderr until EOF and logs each line,
//     so a chatty process never blocks on a full stderr pipe
//   - a feeder copying the upstream source into a 64KB relay pipe
//   - a relay copying the pipe into the process stdin
//
// The relay pipe is the only buffer. A slow process stalls the relay,
// the pipe fills, and the feeder stops reading upstream, so memory stays
// bounded whatever the input size.
//
// # Errors
//
// Only spawn failures are returned to the caller (*SpawnError). Copy
// failures in the background goroutines are logged and show up as
// truncated output. Close never fails: it closes stdout and stdin, waits
// for the process to exit and then kills it regardless, so no process
// outlives its Stream.
//
// # Profiles
//
// Package profile loads multi-step transcoding profiles from YAML and
// builds chains of Streams from them.
package transcode
