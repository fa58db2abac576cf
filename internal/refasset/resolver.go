// Package refasset turns loosely-specified reference pointers (explicit URLs,
// linked character/scene/prop ids) into the single reference representation
// the vendor gateway accepts.
package refasset

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	xdraw "golang.org/x/image/draw"

	"storyboard-server/internal/domain"
	"storyboard-server/internal/infra"
)

// Options configures a Resolver.
type Options struct {
	Targets    domain.TargetRepository
	Storage    domain.Storage
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Resolver collects, filters and composites reference images.
type Resolver struct {
	targets domain.TargetRepository
	storage domain.Storage
	client  *http.Client
	logger  infra.Logger
}

// NewResolver wires a Resolver from options.
func NewResolver(opts Options) *Resolver {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Resolver{
		targets: opts.Targets,
		storage: opts.Storage,
		client:  client,
		logger:  logger,
	}
}

// Sources names everything a task message can point a reference at.
type Sources struct {
	URLs         []string
	CharacterIDs []string
	SceneID      string
	PropIDs      []string
}

// Collect resolves sources to reference URLs: explicit URLs first, then linked
// character, scene and prop thumbnails. Placeholder entries are dropped and
// duplicates removed preserving first-seen order. Lookup failures skip the
// entry rather than failing the caller.
func (r *Resolver) Collect(ctx context.Context, src Sources) []string {
	var raw []string
	raw = append(raw, src.URLs...)

	for _, id := range src.CharacterIDs {
		asset, err := r.targets.GetCharacter(ctx, id)
		if err != nil {
			r.logger.Warn().Err(err).Str("character_id", id).Msg("refasset: character lookup failed")
			continue
		}
		raw = append(raw, asset.ThumbnailURL())
	}
	if src.SceneID != "" {
		asset, err := r.targets.GetScene(ctx, src.SceneID)
		if err != nil {
			r.logger.Warn().Err(err).Str("scene_id", src.SceneID).Msg("refasset: scene lookup failed")
		} else {
			raw = append(raw, asset.ThumbnailURL())
		}
	}
	for _, id := range src.PropIDs {
		asset, err := r.targets.GetProp(ctx, id)
		if err != nil {
			r.logger.Warn().Err(err).Str("prop_id", id).Msg("refasset: prop lookup failed")
			continue
		}
		raw = append(raw, asset.ThumbnailURL())
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, u := range raw {
		if isPlaceholder(u) {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// ResolveOne reduces a resolved URL list to the single reference the gateway
// takes: zero stays empty, one passes through, more than one is composited
// into a single uploaded image. A compositing failure degrades to the first
// URL instead of failing the job.
func (r *Resolver) ResolveOne(ctx context.Context, urls []string) string {
	switch len(urls) {
	case 0:
		return ""
	case 1:
		return urls[0]
	}
	composite, err := r.composite(ctx, urls)
	if err != nil {
		r.logger.Warn().Err(err).Int("count", len(urls)).
			Msg("refasset: composite failed, falling back to first reference")
		return urls[0]
	}
	return composite
}

// composite concatenates the images left-to-right at the height of the
// tallest input, scaling each proportionally, and uploads the result once.
func (r *Resolver) composite(ctx context.Context, urls []string) (string, error) {
	images := make([]image.Image, 0, len(urls))
	for _, u := range urls {
		data, err := r.download(ctx, u)
		if err != nil {
			return "", err
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("refasset: decode %s: %w", u, err)
		}
		images = append(images, img)
	}

	tallest := 0
	for _, img := range images {
		if h := img.Bounds().Dy(); h > tallest {
			tallest = h
		}
	}

	widths := make([]int, len(images))
	total := 0
	for i, img := range images {
		b := img.Bounds()
		w := int(math.Round(float64(b.Dx()) * float64(tallest) / float64(b.Dy())))
		if w < 1 {
			w = 1
		}
		widths[i] = w
		total += w
	}

	canvas := image.NewRGBA(image.Rect(0, 0, total, tallest))
	x := 0
	for i, img := range images {
		dst := image.Rect(x, 0, x+widths[i], tallest)
		xdraw.CatmullRom.Scale(canvas, dst, img, img.Bounds(), xdraw.Over, nil)
		x += widths[i]
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return "", fmt.Errorf("refasset: encode composite: %w", err)
	}
	filename := "ref-" + uuid.NewString() + ".png"
	url, err := r.storage.Upload(ctx, buf.Bytes(), filename, "image/png")
	if err != nil {
		return "", fmt.Errorf("refasset: upload composite: %w", err)
	}
	return url, nil
}

// Download fetches the raw bytes of a reference URL together with its
// declared content type.
func (r *Resolver) Download(ctx context.Context, url string) ([]byte, string, error) {
	data, err := r.download(ctx, url)
	if err != nil {
		return nil, "", err
	}
	mimeType := http.DetectContentType(data)
	return data, mimeType, nil
}

func (r *Resolver) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("refasset: build request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refasset: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("refasset: fetch %s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("refasset: read %s: %w", url, err)
	}
	return data, nil
}

func isPlaceholder(url string) bool {
	u := strings.TrimSpace(strings.ToLower(url))
	if u == "" {
		return true
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return true
	}
	return strings.Contains(u, "placehold")
}
