// wav2flac converts WAV files to FLAC format.
package main

import (
	"flag"
	"io"
	"log"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/pkg/osutil"
	"github.com/mewkiz/pkg/pathutil"
	"github.com/pkg/errors"

	"github.com/mewkiz/flacenc"
)

func main() {
	// Parse command line arguments.
	var (
		// force overwrite FLAC file if already present.
		force bool
	)
	flag.BoolVar(&force, "f", false, "force overwrite")
	flag.Parse()
	for _, wavPath := range flag.Args() {
		if err := wav2flac(wavPath, force); err != nil {
			log.Fatalf("%+v", err)
		}
	}
}

func wav2flac(wavPath string, force bool) error {
	// Create WAV decoder.
	r, err := os.Open(wavPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer r.Close()
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return errors.Errorf("invalid WAV file %q", wavPath)
	}
	sampleRate, nchannels, bps := int(dec.SampleRate), int(dec.NumChans), int(dec.BitDepth)

	// Create FLAC encoder.
	flacPath := pathutil.TrimExt(wavPath) + ".flac"
	if !force && osutil.Exists(flacPath) {
		return errors.Errorf("FLAC file %q already present; use -f flag to force overwrite", flacPath)
	}
	w, err := os.Create(flacPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer w.Close()

	enc := flacenc.NewEncoder(sampleRate, nchannels, bps)
	if err := enc.Validate(); err != nil {
		return errors.WithStack(err)
	}

	// Store the FLAC signature and a placeholder StreamInfo metadata block;
	// the block is rewritten with the final stream statistics once all
	// samples have been encoded.
	if _, err := w.Write([]byte("fLaC")); err != nil {
		return errors.WithStack(err)
	}
	siBuf := make([]byte, flacenc.SizeStreamInfo())
	if _, err := enc.EncodeStreamInfo(siBuf, true); err != nil {
		return errors.WithStack(err)
	}
	if _, err := w.Write(siBuf); err != nil {
		return errors.WithStack(err)
	}

	// Encode samples.
	if err := dec.FwdToPCM(); err != nil {
		return errors.WithStack(err)
	}
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: nchannels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, enc.BlockSize*nchannels),
		SourceBitDepth: bps,
	}
	frameBuf := make([]byte, flacenc.SizeFrame(enc.BlockSize, nchannels, bps))
	samples := make([]int32, enc.BlockSize*nchannels)
	for {
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return errors.WithStack(err)
		}
		if n == 0 {
			break
		}
		for i := 0; i < n; i++ {
			samples[i] = int32(buf.Data[i])
		}
		m, err := enc.EncodeInt32Interleaved(frameBuf, samples[:n])
		if err != nil {
			return errors.WithStack(err)
		}
		if _, err := w.Write(frameBuf[:m]); err != nil {
			return errors.WithStack(err)
		}
	}

	// Complete the MD5 checksum of the unencoded audio and rewrite the
	// StreamInfo metadata block with the final stream statistics.
	enc.Finalize()
	if _, err := w.Seek(4, io.SeekStart); err != nil {
		return errors.WithStack(err)
	}
	if _, err := enc.EncodeStreamInfo(siBuf, true); err != nil {
		return errors.WithStack(err)
	}
	if _, err := w.Write(siBuf); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
