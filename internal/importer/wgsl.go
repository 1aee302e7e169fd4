package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/naga"
)

// ImportWGSL compiles src to SPIR-V and writes <stem>.spv.
func ImportWGSL(src, dstDir string, debug bool) ([]string, error) {
	source, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read wgsl %s: %w", src, err)
	}
	opts := naga.DefaultOptions()
	opts.Debug = debug
	spv, err := naga.CompileWithOptions(string(source), opts)
	if err != nil {
		return nil, fmt.Errorf("compile wgsl %s: %w", src, err)
	}
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	out := filepath.Join(dstDir, stem+".spv")
	if err := writeOutput(out, spv); err != nil {
		return nil, err
	}
	return []string{out}, nil
}
