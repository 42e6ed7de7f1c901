package deliver

import (
	"io"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// progressReader tracks bytes read and updates an mpb.Bar.
type progressReader struct {
	r   io.Reader
	bar *mpb.Bar
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.bar.IncrBy(n)
	}
	return n, err
}

func NewProgressContainer() *mpb.Progress {
	return mpb.New(mpb.WithWidth(64))
}

// AddUploadBar creates a byte-accurate bar for one delivery.
func AddUploadBar(p *mpb.Progress, name string, total int64) *mpb.Bar {
	if p == nil {
		return nil
	}
	return p.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1}),
			decor.CountersKibiByte("% .2f / % .2f"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.OnComplete(decor.Name(" [DONE]"), " [SENT]"),
		),
	)
}
