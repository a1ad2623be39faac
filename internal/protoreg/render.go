package protoreg

import (
	"io"
	"os"
	"path/filepath"

	"github.com/jhump/protoreflect/v2/protoprint"
)

// Render writes every generated file below outDir, following its proto path.
func Render(r *Registry, outDir string) error {
	pp := protoprint.Printer{}
	for _, fd := range r.Files() {
		fp := filepath.Join(outDir, filepath.FromSlash(fd.Path()))
		if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(fp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
		err = pp.PrintProtoFile(fd, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Print writes the generated proto source to w.
func Print(r *Registry, w io.Writer) error {
	pp := protoprint.Printer{}
	for _, fd := range r.Files() {
		if err := pp.PrintProtoFile(fd, w); err != nil {
			return err
		}
	}
	return nil
}
