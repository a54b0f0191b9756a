// Package generator writes the binding source files for a parsed set of
// headers.
package generator

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/ardanlabs/bindgen/config"
	"github.com/ardanlabs/bindgen/diag"
	"github.com/ardanlabs/bindgen/parser"
	"github.com/ardanlabs/bindgen/partition"
	"github.com/ardanlabs/bindgen/target"
	"github.com/ardanlabs/bindgen/typemap"
)

// Result holds every output file keyed by its path relative to the
// destination directory.
type Result struct {
	Files       map[string]string
	Diagnostics diag.List
}

type Generator struct {
	cfg     *config.Config
	dialect *target.Dialect
	comp    *parser.Compilation

	// ReadFile reads headers copied to the output. It defaults to
	// os.ReadFile.
	ReadFile func(string) ([]byte, error)
}

func New(cfg *config.Config, dialect *target.Dialect, comp *parser.Compilation) *Generator {
	return &Generator{
		cfg:      cfg,
		dialect:  dialect,
		comp:     comp,
		ReadFile: os.ReadFile,
	}
}

// Generate builds every output file in memory.
func (g *Generator) Generate() (*Result, error) {
	res := Result{Files: make(map[string]string)}
	res.Diagnostics.Append(g.comp.Diagnostics)

	env, diags := typemap.Build(g.dialect, g.comp, g.cfg.TypemapOptions())
	res.Diagnostics.Append(diags)

	part := partition.Partition(g.comp, env, g.cfg.PartitionOptions())
	res.Diagnostics.Append(part.Diagnostics)

	var err error
	switch g.dialect.Kind {
	case target.Odin:
		err = g.generateOdin(part.Groups, res.Files)
	default:
		err = g.generateV(part.Groups, res.Files)
	}
	if err != nil {
		return nil, err
	}

	if g.cfg.CopyHeadersToDstDir {
		if err := g.copyHeaders(part.Headers, res.Files); err != nil {
			return nil, fmt.Errorf("copying headers: %w", err)
		}
	}

	return &res, nil
}

// copyHeaders adds each header under thirdparty/, keeping its path below
// the base source folder, or below src_dir when it is outside of it.
func (g *Generator) copyHeaders(headers []string, files map[string]string) error {
	for _, h := range headers {
		data, err := g.ReadFile(h)
		if err != nil {
			return err
		}
		files[filepath.Join("thirdparty", g.headerPath(h))] = string(data)
	}
	return nil
}

func (g *Generator) headerPath(h string) string {
	if base := g.cfg.BaseSourceFolder; base != "" {
		sep := string(filepath.Separator)
		if i := strings.LastIndex(h, sep+base+sep); i >= 0 {
			return h[i+1:]
		}
	}

	if rel, err := filepath.Rel(g.cfg.SrcDir, h); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return filepath.Base(h)
}

func execute(name, tmpl string, data any) (string, error) {
	t, err := template.New(name).Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing %s: %w", name, err)
	}

	return buf.String(), nil
}
