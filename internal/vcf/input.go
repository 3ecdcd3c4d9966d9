package vcf

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
)

// input is a possibly decompressed stream plus whatever must be closed
// after reading it, innermost first.
type input struct {
	io.Reader
	closers []io.Closer
}

func (in *input) Close() error {
	var errs []error
	for _, c := range in.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// OpenInput opens a variant file, or stdin for "-". Gzip and bgzip streams
// are recognized by their magic bytes, not the file name.
func OpenInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return sniffGzip(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	in, err := sniffGzip(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	in.closers = append(in.closers, f)
	return in, nil
}

func sniffGzip(r io.Reader) (*input, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if len(magic) < 2 || magic[0] != 0x1f || magic[1] != 0x8b {
		return &input{Reader: br}, nil
	}
	gz, err := gzip.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	return &input{Reader: gz, closers: []io.Closer{gz}}, nil
}
