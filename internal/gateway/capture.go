package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// XCapture pulls window content out of X11. Text capture drives the
// terminal's select-all/copy bindings and reads the clipboard back; image
// capture rasterizes the window with ImageMagick's import.
type XCapture struct{}

// captureSettle is the pause between synthetic key events during text
// capture; the terminal needs a beat to update its selection and clipboard.
const captureSettle = 100 * time.Millisecond

func (XCapture) CaptureText(ctx context.Context, windowID uint32) (string, error) {
	win := strconv.FormatUint(uint64(windowID), 10)

	if err := exec.CommandContext(ctx, "xdotool", "windowactivate", win).Run(); err != nil {
		return "", fmt.Errorf("activate window %s: %w", win, err)
	}
	time.Sleep(captureSettle)
	if err := exec.CommandContext(ctx, "xdotool", "key", "--window", win, "ctrl+shift+a").Run(); err != nil {
		return "", fmt.Errorf("select all in window %s: %w", win, err)
	}
	time.Sleep(captureSettle)
	if err := exec.CommandContext(ctx, "xdotool", "key", "--window", win, "ctrl+shift+c").Run(); err != nil {
		return "", fmt.Errorf("copy from window %s: %w", win, err)
	}
	time.Sleep(captureSettle)

	out, err := exec.CommandContext(ctx, "xclip", "-o", "-selection", "clipboard").Output()
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}
	return string(out), nil
}

func (XCapture) CaptureImage(ctx context.Context, windowID uint32) (string, error) {
	win := strconv.FormatUint(uint64(windowID), 10)
	tmp := fmt.Sprintf("%s/termctl_shot_%s.png", os.TempDir(), win)
	defer func() { _ = os.Remove(tmp) }()

	out, err := exec.CommandContext(ctx, "import", "-window", win, tmp).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("capture window %s: %s", win, strings.TrimSpace(string(out)))
	}
	data, err := os.ReadFile(tmp)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}
