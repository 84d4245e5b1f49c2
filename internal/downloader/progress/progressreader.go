package progress

import "io"

// ProgressReader wraps an io.Reader and reports every successful read via a callback.
type ProgressReader struct {
	Reader io.Reader
	OnRead func(n int64)
}

func NewReader(r io.Reader, cb func(n int64)) *ProgressReader {
	return &ProgressReader{
		Reader: r,
		OnRead: cb,
	}
}

func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.Reader.Read(p)
	if n > 0 {
		if pr.OnRead != nil {
			pr.OnRead(int64(n))
		}
	}

	return n, err
}
