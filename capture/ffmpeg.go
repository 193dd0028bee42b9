package capture

import (
	"context"
	"fmt"
	"image"
	"os/exec"
	"strconv"
)

// FFmpegSource reads the frames of a video file, stream URL or capture device through an ffmpeg
// subprocess converting them into a BMP pipe.
type FFmpegSource struct {
	cmd    *exec.Cmd
	stream *BMPStream
	cancel context.CancelFunc
}

// FFmpegArgs returns the ffmpeg arguments extracting fps frames per second out of input.
// A non empty format selects the input device format (e.g. v4l2, avfoundation, dshow).
func FFmpegArgs(input, format string, fps int) []string {
	var args []string
	args = append(args, "-loglevel", "error")
	if format != "" {
		args = append(args, "-f", format)
	}
	args = append(args, "-i", input)
	if fps > 0 {
		args = append(args, "-vf", "fps="+strconv.Itoa(fps))
	}
	return append(args, "-f", "image2pipe", "-vcodec", "bmp", "-")
}

// NewFFmpegSource starts ffmpeg on the given input. The subprocess is terminated on Close.
func NewFFmpegSource(ctx context.Context, input, format string, fps int) (*FFmpegSource, error) {
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, "ffmpeg", FFmpegArgs(input, format, fps)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("unable to open the ffmpeg output: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("unable to start ffmpeg: %w", err)
	}

	return &FFmpegSource{
		cmd:    cmd,
		stream: NewBMPStream(stdout),
		cancel: cancel,
	}, nil
}

// Next implements faceshape.FrameSource.
func (f *FFmpegSource) Next(ctx context.Context) (image.Image, error) {
	return f.stream.Next(ctx)
}

// Close stops ffmpeg and releases the pipe.
func (f *FFmpegSource) Close() error {
	f.cancel()
	err := f.stream.Close()
	// The process is killed by the cancelled context, so its exit status is irrelevant.
	_ = f.cmd.Wait()
	return err
}
