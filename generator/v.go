package generator

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ardanlabs/bindgen/partition"
)

const vHeader = `module {{.Module}}

`

func (g *Generator) generateV(groups []*partition.Group, files map[string]string) error {
	if g.cfg.SingleFileExport {
		var buf bytes.Buffer
		for _, grp := range groups {
			g.writeVGroup(&buf, grp)
		}

		head, err := execute("module", vHeader, map[string]string{"Module": g.cfg.ModuleName})
		if err != nil {
			return err
		}
		files[g.cfg.DeclarationFileName] = head + buf.String()
	} else {
		for _, grp := range groups {
			if grp.Empty() {
				continue
			}

			module, path := g.vGroupFile(grp)
			head, err := execute("module", vHeader, map[string]string{"Module": module})
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			g.writeVGroup(&buf, grp)
			files[path] = head + buf.String()
		}
	}

	wrapper, err := g.vWrapper(groups)
	if err != nil {
		return fmt.Errorf("generating wrapper: %w", err)
	}
	files[g.cfg.WrapperFileName] = wrapper

	return nil
}

// vGroupFile returns the module and the path of a group's declarations.
func (g *Generator) vGroupFile(grp *partition.Group) (string, string) {
	name := grp.Filename + g.dialect.Ext
	if g.cfg.UseHeaderFolder && grp.Folder != g.cfg.BaseSourceFolder {
		return grp.Folder, filepath.Join(grp.Folder, name)
	}
	return g.cfg.ModuleName, name
}

func (g *Generator) writeVGroup(buf *bytes.Buffer, grp *partition.Group) {
	for _, e := range grp.Enums {
		fmt.Fprintf(buf, "pub enum %s {\n", e.Name)
		for _, m := range e.Members {
			if e.Explicit {
				fmt.Fprintf(buf, "\t%s = %d\n", m.Name, m.Value)
				continue
			}
			fmt.Fprintf(buf, "\t%s\n", m.Name)
		}
		fmt.Fprintf(buf, "}\n\n")
	}

	for _, r := range grp.Records {
		fmt.Fprintf(buf, "pub struct %s {\n", r.Name)
		if len(r.Fields) > 0 {
			fmt.Fprintf(buf, "pub:\n")
		}
		for _, f := range r.Fields {
			fmt.Fprintf(buf, "\t%s %s\n", f.Name, f.Type)
		}
		fmt.Fprintf(buf, "}\n\n")
	}

	for _, f := range grp.Functions {
		params := make([]string, len(f.Params))
		for i, p := range f.Params {
			params[i] = p.Name + " " + p.Type
		}

		fmt.Fprintf(buf, "fn C.%s(%s)", f.Name, strings.Join(params, ", "))
		if f.Return != "" {
			fmt.Fprintf(buf, " %s", f.Return)
		}
		fmt.Fprintf(buf, "\n")
	}
}

func (g *Generator) vWrapper(groups []*partition.Group) (string, error) {
	head, err := execute("module", vHeader, map[string]string{"Module": g.cfg.ModuleName})
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	buf.WriteString(head)

	for _, grp := range groups {
		for _, f := range grp.Functions {
			if f.Wrapped {
				g.writeVFunction(&buf, f)
			}
		}
	}

	return buf.String(), nil
}

// writeVFunction writes a forwarding function. C strings are taken and
// returned as V strings.
func (g *Generator) writeVFunction(buf *bytes.Buffer, f *partition.Function) {
	cstr := g.dialect.CString

	params := make([]string, len(f.Params))
	args := make([]string, len(f.Params))
	for i, p := range f.Params {
		if p.Type == cstr {
			params[i] = p.TargetName + " string"
			args[i] = p.TargetName + ".str"
			continue
		}
		params[i] = p.TargetName + " " + p.Type
		args[i] = p.TargetName
	}

	ret := f.Return
	if ret == cstr {
		ret = "string"
	}

	fmt.Fprintf(buf, "[inline]\n")
	fmt.Fprintf(buf, "pub fn %s(%s)", f.TargetName, strings.Join(params, ", "))
	if ret != "" {
		fmt.Fprintf(buf, " %s", ret)
	}
	fmt.Fprintf(buf, " {\n")

	call := fmt.Sprintf("C.%s(%s)", f.Name, strings.Join(args, ", "))
	switch {
	case f.Return == "":
		fmt.Fprintf(buf, "\t%s\n", call)
	case f.Return == cstr:
		fmt.Fprintf(buf, "\treturn unsafe { cstring_to_vstring(%s) }\n", call)
	default:
		fmt.Fprintf(buf, "\treturn %s\n", call)
	}

	fmt.Fprintf(buf, "}\n\n")
}
