package storage

import (
	"io"
	"math"
)

// progressReader wraps the upload source and reports the transfer percentage
// after every read. Reported values never decrease and reach 100 exactly when
// the full size has been consumed.
type progressReader struct {
	r      io.Reader
	total  int64
	sent   int64
	last   int
	report func(pct int)
}

func newProgressReader(r io.Reader, total int64, report func(pct int)) *progressReader {
	return &progressReader{r: r, total: total, last: -1, report: report}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		pct := int(math.Round(float64(p.sent) / float64(p.total) * 100))
		if pct > 100 {
			pct = 100
		}
		if pct > p.last {
			p.last = pct
			p.report(pct)
		}
	}
	return n, err
}
