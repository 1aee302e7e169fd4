package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

var ErrInvalidGLSL = errors.New("invalid glsl")

type Stage string

const (
	StageVertex   Stage = "vertex"
	StageGeometry Stage = "geometry"
	StageFragment Stage = "fragment"
)

var stages = []Stage{StageVertex, StageGeometry, StageFragment}

func ParseStage(s string) (Stage, error) {
	for _, stage := range stages {
		if string(stage) == s {
			return stage, nil
		}
	}
	return "", fmt.Errorf("%w: unknown shader stage %q", ErrInvalidGLSL, s)
}

// Ext is the short stage name used in output file names.
func (s Stage) Ext() string {
	switch s {
	case StageVertex:
		return "vert"
	case StageGeometry:
		return "geom"
	default:
		return "frag"
	}
}

var outIn = regexp.MustCompile(`\bOUT_IN\b`)

type regionKind int

const (
	regionNone regionKind = iota
	regionLayout
	regionIO
	regionEntry
)

// PreprocessGLSL splits a multi-stage source into one GLSL translation unit
// per stage. The source is organised in regions:
//
//	#glsl_version 450
//	#define NAME value               (outside regions: shared by all stages)
//	#layout vertex                   declarations of one stage
//	#layout io vertex fragment       interface; OUT_IN becomes out/in
//	#entry vertex                    main of one stage
//
// Code outside a region is an error, as is a stage without an entry.
func PreprocessGLSL(name, source string) (map[Stage]string, error) {
	var (
		version  string
		defines  []string
		region   = regionNone
		current  []Stage
		units    = map[Stage]*strings.Builder{}
		entries  = map[Stage]bool{}
		producer Stage
	)
	unit := func(s Stage) *strings.Builder {
		b, ok := units[s]
		if !ok {
			b = &strings.Builder{}
			units[s] = b
		}
		return b
	}
	fail := func(line int, format string, args ...any) error {
		return fmt.Errorf("%w: %s:%d: %s", ErrInvalidGLSL, name, line, fmt.Sprintf(format, args...))
	}

	lines := strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lineNo := i + 1
		fields := strings.Fields(line)
		directive := ""
		if len(fields) > 0 {
			directive = fields[0]
		}

		switch directive {
		case "#glsl_version":
			if version != "" {
				return nil, fail(lineNo, "duplicate #glsl_version")
			}
			if region != regionNone {
				return nil, fail(lineNo, "#glsl_version must precede all regions")
			}
			if len(fields) != 2 {
				return nil, fail(lineNo, "#glsl_version takes exactly one version")
			}
			version = fields[1]
			continue

		case "#layout":
			if len(fields) >= 2 && fields[1] == "io" {
				if len(fields) != 4 {
					return nil, fail(lineNo, "#layout io takes a producer and a consumer stage")
				}
				from, err := ParseStage(fields[2])
				if err != nil {
					return nil, fail(lineNo, "%v", err)
				}
				to, err := ParseStage(fields[3])
				if err != nil {
					return nil, fail(lineNo, "%v", err)
				}
				if from == to {
					return nil, fail(lineNo, "#layout io needs two different stages")
				}
				region, current, producer = regionIO, []Stage{from, to}, from
			} else {
				if len(fields) != 2 {
					return nil, fail(lineNo, "#layout takes exactly one stage")
				}
				s, err := ParseStage(fields[1])
				if err != nil {
					return nil, fail(lineNo, "%v", err)
				}
				region, current = regionLayout, []Stage{s}
			}
			for _, s := range current {
				fmt.Fprintf(unit(s), "#line %d\n", lineNo+1)
			}
			continue

		case "#entry":
			if len(fields) != 2 {
				return nil, fail(lineNo, "#entry takes exactly one stage")
			}
			s, err := ParseStage(fields[1])
			if err != nil {
				return nil, fail(lineNo, "%v", err)
			}
			if entries[s] {
				return nil, fail(lineNo, "duplicate #entry %s", s)
			}
			entries[s] = true
			region, current = regionEntry, []Stage{s}
			fmt.Fprintf(unit(s), "#line %d\n", lineNo+1)
			continue

		case "#define":
			if region == regionNone {
				defines = append(defines, line)
				continue
			}
		}

		switch region {
		case regionNone:
			trimmed := strings.TrimSpace(line)
			if trimmed != "" && !strings.HasPrefix(trimmed, "//") {
				return nil, fail(lineNo, "code outside of a region")
			}
		case regionIO:
			for _, s := range current {
				keyword := "in"
				if s == producer {
					keyword = "out"
				}
				unit(s).WriteString(outIn.ReplaceAllString(line, keyword))
				unit(s).WriteByte('\n')
			}
		default:
			unit(current[0]).WriteString(line)
			unit(current[0]).WriteByte('\n')
		}
	}

	if version == "" {
		return nil, fmt.Errorf("%w: %s: missing #glsl_version", ErrInvalidGLSL, name)
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("%w: %s: no stages", ErrInvalidGLSL, name)
	}
	out := make(map[Stage]string, len(units))
	for s, body := range units {
		if !entries[s] {
			return nil, fmt.Errorf("%w: %s: stage %s has no #entry", ErrInvalidGLSL, name, s)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "#version %s\n#pragma shader_stage(%s)\n", version, s)
		for _, d := range defines {
			b.WriteString(d)
			b.WriteByte('\n')
		}
		b.WriteString(body.String())
		out[s] = b.String()
	}
	return out, nil
}

// ShaderCompiler turns one preprocessed stage into SPIR-V.
type ShaderCompiler interface {
	Compile(ctx context.Context, name string, stage Stage, source string) ([]byte, error)
}

// Glslc runs the external glslc binary with warnings as errors and
// performance optimisation.
type Glslc struct {
	Path string
}

func (g Glslc) Compile(ctx context.Context, name string, stage Stage, source string) ([]byte, error) {
	path := g.Path
	if path == "" {
		path = "glslc"
	}
	cmd := exec.CommandContext(ctx, path, "-Werror", "-O", "-o", "-", "-")
	cmd.Stdin = strings.NewReader(source)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("glslc %s (%s): %w: %s", name, stage, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// ImportGLSL preprocesses src and writes <stem>.<stage>.spv per stage.
func ImportGLSL(ctx context.Context, compiler ShaderCompiler, src, dstDir string) ([]string, error) {
	source, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read glsl %s: %w", src, err)
	}
	units, err := PreprocessGLSL(filepath.Base(src), string(source))
	if err != nil {
		return nil, err
	}
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	var outputs []string
	for _, stage := range stages {
		unit, ok := units[stage]
		if !ok {
			continue
		}
		spv, err := compiler.Compile(ctx, filepath.Base(src), stage, unit)
		if err != nil {
			return nil, fmt.Errorf("import glsl %s: %w", src, err)
		}
		out := filepath.Join(dstDir, fmt.Sprintf("%s.%s.spv", stem, stage.Ext()))
		if err := writeOutput(out, spv); err != nil {
			return nil, err
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}
