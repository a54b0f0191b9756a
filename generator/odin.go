package generator

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ardanlabs/bindgen/partition"
)

const odinForeign = `package {{.Module}}

when ODIN_OS == .Windows {
	foreign import {{.Lib}} "{{.Native}}.lib"
} else {
	foreign import {{.Lib}} "system:{{.Native}}"
}

foreign {{.Lib}} {
`

func (g *Generator) generateOdin(groups []*partition.Group, files map[string]string) error {
	procs, err := execute("foreign", odinForeign, map[string]string{
		"Module": g.cfg.ModuleName,
		"Lib":    g.cfg.ModuleName + "_lib",
		"Native": g.cfg.NativeLibName,
	})
	if err != nil {
		return fmt.Errorf("generating procs: %w", err)
	}

	var types, body bytes.Buffer
	fmt.Fprintf(&types, "package %s\n", g.cfg.ModuleName)

	for _, grp := range groups {
		g.writeOdinTypes(&types, grp)
		g.writeOdinProcs(&body, grp)
	}
	body.WriteString("}\n")

	files["types.odin"] = types.String()
	files["procs.odin"] = procs + body.String()

	return nil
}

func (g *Generator) writeOdinTypes(buf *bytes.Buffer, grp *partition.Group) {
	if len(grp.Enums)+len(grp.Records) == 0 {
		return
	}

	if s := grp.Section(); s != "" {
		fmt.Fprintf(buf, "\n// %s\n\n", s)
	} else {
		fmt.Fprintf(buf, "\n")
	}

	for _, e := range grp.Enums {
		fmt.Fprintf(buf, "%s :: enum i32 {\n", e.Name)
		for _, m := range e.Members {
			if e.Explicit {
				fmt.Fprintf(buf, "\t%s = %d,\n", m.Name, m.Value)
				continue
			}
			fmt.Fprintf(buf, "\t%s,\n", m.Name)
		}
		fmt.Fprintf(buf, "}\n\n")
	}

	for _, r := range grp.Records {
		kind := "struct"
		if r.Union {
			kind = "struct #raw_union"
		}

		fmt.Fprintf(buf, "%s :: %s {\n", r.Name, kind)
		for _, f := range r.Fields {
			fmt.Fprintf(buf, "\t%s: %s,\n", f.Name, f.Type)
		}
		fmt.Fprintf(buf, "}\n\n")
	}
}

func (g *Generator) writeOdinProcs(buf *bytes.Buffer, grp *partition.Group) {
	if len(grp.Functions) == 0 {
		return
	}

	if s := grp.Section(); s != "" {
		fmt.Fprintf(buf, "\t// %s\n", s)
	}

	for _, f := range grp.Functions {
		params := make([]string, len(f.Params))
		for i, p := range f.Params {
			params[i] = p.Name + ": " + p.Type
		}

		fmt.Fprintf(buf, "\t@(link_name = %q)\n", f.Name)
		fmt.Fprintf(buf, "\t%s :: proc(%s)", f.TargetName, strings.Join(params, ", "))
		if f.Return != "" {
			fmt.Fprintf(buf, " -> %s", f.Return)
		}
		fmt.Fprintf(buf, " ---\n\n")
	}
}
