package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"omnigen/internal/credential"
	"omnigen/internal/models"
	"omnigen/internal/wav"
)

const imageLongDesc string = `Generate an image from a prompt, or edit an existing one.

Examples:
  omnigen image -o fox.png "a red fox in the snow"
  omnigen image --aspect 16:9 -o wide.png "a mountain range at dawn"
  omnigen image --edit fox.png -o fox-hat.png "give the fox a top hat"`

const imageShortDesc string = "Generate or edit an image"

type imageCommander struct {
	g      *globals
	output string
	aspect string
	edit   string
}

func newImageCmd(g *globals) *cobra.Command {
	cmder := &imageCommander{g: g}

	cmd := &cobra.Command{
		Use:   "image <prompt>",
		Short: imageShortDesc,
		Long:  imageLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&cmder.output, "output", "o", "image.png", "Output file, or - for stdout")
	cmd.Flags().StringVar(&cmder.aspect, "aspect", models.DefaultImageAspectRatio, "Aspect ratio (1:1, 3:4, 4:3, 16:9, 9:16)")
	cmd.Flags().StringVar(&cmder.edit, "edit", "", "Image file to edit instead of generating from scratch")

	return cmd
}

func (c *imageCommander) run(ctx context.Context, cmd *cobra.Command, prompt string) error {
	req := models.ImageRequest{Prompt: prompt, AspectRatio: c.aspect}
	if c.edit != "" {
		img, err := readImage(c.edit)
		if err != nil {
			return err
		}
		req.BaseImage = img
	}

	a, err := newApp(ctx, c.g, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.images.Generate(ctx, req)
	if err != nil {
		return err
	}
	if err := writeFile(cmd.OutOrStdout(), c.output, res.Data); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	if c.output != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s (%s, %d bytes)\n", c.output, res.MimeType, len(res.Data))
	}
	return nil
}

const videoLongDesc string = `Generate a short video clip from a prompt and/or a start frame.

Video generation takes a few minutes; progress is printed while the
job runs. With --select-key you are asked for the API key to bill the
generation to; otherwise the configured key is used.

Examples:
  omnigen video -o waves.mp4 "waves crashing on a rocky shore"
  omnigen video --image frame.png --resolution 1080p -o clip.mp4`

const videoShortDesc string = "Generate a video clip"

type videoCommander struct {
	g          *globals
	output     string
	aspect     string
	resolution string
	image      string
	selectKey  bool
}

func newVideoCmd(g *globals) *cobra.Command {
	cmder := &videoCommander{g: g}

	cmd := &cobra.Command{
		Use:   "video [prompt]",
		Short: videoShortDesc,
		Long:  videoLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&cmder.output, "output", "o", "video.mp4", "Output file, or - for stdout")
	cmd.Flags().StringVar(&cmder.aspect, "aspect", models.DefaultVideoAspectRatio, "Aspect ratio (16:9 or 9:16)")
	cmd.Flags().StringVar(&cmder.resolution, "resolution", models.DefaultVideoResolution, "Resolution (720p or 1080p)")
	cmd.Flags().StringVar(&cmder.image, "image", "", "Start frame image file")
	cmd.Flags().BoolVar(&cmder.selectKey, "select-key", false, "Prompt for the API key to use")

	return cmd
}

func (c *videoCommander) run(ctx context.Context, cmd *cobra.Command, prompt string) error {
	req := models.VideoRequest{Prompt: prompt, AspectRatio: c.aspect, Resolution: c.resolution}
	if c.image != "" {
		img, err := readImage(c.image)
		if err != nil {
			return err
		}
		req.Image = img
	}

	opts := appOptions{}
	if c.selectKey {
		opts.selector = func(*app) (credential.Selector, error) {
			return credential.NewTerminalSelector(os.Stdin, cmd.ErrOrStderr()), nil
		}
	}
	a, err := newApp(ctx, c.g, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	stderr := cmd.ErrOrStderr()
	var last string
	res, err := a.videos.Generate(ctx, req, func(stage string) {
		if stage != last {
			fmt.Fprintln(stderr, noticeStyle.Render(stage))
			last = stage
		}
	})
	if err != nil {
		return err
	}
	if err := writeFile(cmd.OutOrStdout(), c.output, res.Data); err != nil {
		return fmt.Errorf("write video: %w", err)
	}
	if c.output != "-" {
		fmt.Fprintf(stderr, "Saved %s (%s, %d bytes)\n", c.output, res.MimeType, len(res.Data))
	}
	return nil
}

const speakLongDesc string = `Read text aloud and save it as a WAV file.

Examples:
  omnigen speak -o hello.wav "Hello there, welcome to the studio."
  omnigen speak --voice Puck -o - "Quick test" | aplay
  omnigen speak --info -o hello.wav "How long is this?"`

const speakShortDesc string = "Synthesize speech to a WAV file"

type speakCommander struct {
	g      *globals
	output string
	voice  string
	info   bool
}

func newSpeakCmd(g *globals) *cobra.Command {
	cmder := &speakCommander{g: g}

	cmd := &cobra.Command{
		Use:   "speak <text>",
		Short: speakShortDesc,
		Long:  speakLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&cmder.output, "output", "o", "speech.wav", "Output file, or - for stdout")
	cmd.Flags().StringVar(&cmder.voice, "voice", models.DefaultVoice, "Voice ("+strings.Join(models.Voices, ", ")+")")
	cmd.Flags().BoolVar(&cmder.info, "info", false, "Print the format and duration of the generated audio")

	return cmd
}

func (c *speakCommander) run(ctx context.Context, cmd *cobra.Command, text string) error {
	a, err := newApp(ctx, c.g, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.speech.Synthesize(ctx, models.SpeechRequest{Text: text, Voice: c.voice})
	if err != nil {
		return err
	}
	if err := writeFile(cmd.OutOrStdout(), c.output, res.Data); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	if c.output != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s (%d bytes)\n", c.output, len(res.Data))
	}
	if c.info {
		return describeWAV(cmd.ErrOrStderr(), res.Data)
	}
	return nil
}

// describeWAV reads back a wave file and prints its format.
func describeWAV(w io.Writer, data []byte) error {
	format, _, err := wav.Parse(data)
	if err != nil {
		return fmt.Errorf("inspect audio: %w", err)
	}
	buf, err := wav.Decode(data)
	if err != nil {
		return fmt.Errorf("inspect audio: %w", err)
	}
	fmt.Fprintf(w, "%d channel(s), %d Hz, %d-bit, %d frames, %.2fs\n",
		format.Channels, format.SampleRate, format.BitsPerSample, buf.Frames(), buf.Duration())
	return nil
}

// readImage loads a reference image, sniffing its type from the content.
func readImage(path string) (*models.InlineImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	sniff := data
	if len(sniff) > 512 {
		sniff = sniff[:512]
	}
	img := &models.InlineImage{Data: data, MimeType: http.DetectContentType(sniff)}
	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}
