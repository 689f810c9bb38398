package pipeline

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/turtacn/mseg-regionalizer/internal/domain/segment"
	errs "github.com/turtacn/mseg-regionalizer/pkg/errors"
)

// WriteJSON writes tree to path with the given indent.  The file appears
// only once fully written.
func WriteJSON(path string, tree *segment.Tree, indent string) error {
	return writeAtomic(path, func(w io.Writer) error {
		return segment.Encode(w, tree, indent)
	})
}

// WriteGzip writes tree as compact gzip-compressed JSON.
func WriteGzip(path string, tree *segment.Tree) error {
	return writeAtomic(path, func(w io.Writer) error {
		zw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
		if err != nil {
			return errs.Wrap(err, errs.CodeInternal, "create gzip writer")
		}
		zw.Name = filepath.Base(path)
		if err := segment.Encode(zw, tree, ""); err != nil {
			_ = zw.Close()
			return err
		}
		if err := zw.Close(); err != nil {
			return errs.Wrap(err, errs.CodeIO, "finish gzip stream")
		}
		return nil
	})
}

func writeAtomic(path string, fill func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errs.Wrap(err, errs.CodeIO, "create temporary output").WithDetail(path)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriterSize(tmp, 1<<20)
	if err = fill(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return errs.Wrap(err, errs.CodeIO, "flush output").WithDetail(path)
	}
	if err = tmp.Close(); err != nil {
		return errs.Wrap(err, errs.CodeIO, "close output").WithDetail(path)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return errs.Wrap(err, errs.CodeIO, "set output permissions").WithDetail(path)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errs.Wrap(err, errs.CodeIO, "move output into place").WithDetail(path)
	}
	return nil
}

//Personal.AI order the ending
