package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/janpfeifer/must"

	"github.com/ardanlabs/bindgen/logger"
)

func writeConfig(t *testing.T, target string) (string, string) {
	t.Helper()

	src := must.M1(filepath.Abs(filepath.Join("testdata", "include")))
	dst := t.TempDir()

	yml := `target: ` + target + `
src_dir: ` + src + `
dst_dir: ` + dst + `
module_name: sdl
native_lib_name: SDL2
wrapper_file_name: sdl
base_source_folder: include
files: [SDL/SDL_sample.h]
excluded_from_wrapper_files: [SDL_stdinc.h]
exclude_functions_that_contain: [SDL_SetError]
strip_prefix_from_function_names: [SDL_]
copy_headers_to_dst_dir: true
type_overrides:
  Uint8: byte
`
	path := filepath.Join(t.TempDir(), "bindgen.yml")
	must.M(os.WriteFile(path, []byte(yml), 0644))

	return path, dst
}

func read(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected output %s: %v", path, err)
	}
	return string(data)
}

func TestGenerateV(t *testing.T) {
	path, dst := writeConfig(t, "v")

	headers, err := generate(logger.Discard(), path)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(headers) != 2 {
		t.Errorf("parsed headers = %v", headers)
	}

	decls := read(t, filepath.Join(dst, "SDL", "SDL_sample.v"))
	for _, want := range []string{"module SDL\n", "pub struct C.SDL_Rect {", "fn C.SDL_CreateWindow(", "pub enum WindowFlags {"} {
		if !strings.Contains(decls, want) {
			t.Errorf("declarations missing %q:\n%s", want, decls)
		}
	}
	if strings.Contains(decls, "SDL_SetError") {
		t.Errorf("excluded function was generated")
	}

	wrapper := read(t, filepath.Join(dst, "sdl.v"))
	if !strings.Contains(wrapper, "pub fn create_window(title string,") {
		t.Errorf("wrapper:\n%s", wrapper)
	}
	if strings.Contains(wrapper, "C.SDL_malloc(") {
		t.Errorf("SDL_stdinc functions must stay out of the wrapper")
	}

	read(t, filepath.Join(dst, "thirdparty", "include", "SDL", "SDL_sample.h"))
}

func TestGenerateOdin(t *testing.T) {
	path, dst := writeConfig(t, "odin")

	if _, err := generate(logger.Discard(), path); err != nil {
		t.Fatalf("generate: %v", err)
	}

	procs := read(t, filepath.Join(dst, "procs.odin"))
	if !strings.Contains(procs, `"system:SDL2"`) || !strings.Contains(procs, "create_window :: proc(") {
		t.Errorf("procs:\n%s", procs)
	}
	read(t, filepath.Join(dst, "types.odin"))
}

func TestGenerateBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	must.M(os.WriteFile(path, []byte("module_name: sdl\n"), 0644))

	if _, err := generate(logger.Discard(), path); err == nil {
		t.Fatal("an incomplete config should fail")
	}
}

func TestWriteExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bindgen.yml")

	must.M(writeExample(path))
	if !strings.Contains(read(t, path), "module_name: sdl") {
		t.Errorf("example config:\n%s", read(t, path))
	}

	if err := writeExample(path); err == nil {
		t.Errorf("an existing config must not be overwritten")
	}
}

func TestWatch(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	header := filepath.Join(src, "foo.h")
	must.M(os.WriteFile(header, []byte("int Foo_One(void);\n"), 0644))

	yml := "target: v\nsrc_dir: " + src + "\ndst_dir: " + dst + `
module_name: foo
wrapper_file_name: foo
single_file_export: true
files: [foo.h]
strip_prefix_from_function_names: [Foo_]
`
	path := filepath.Join(t.TempDir(), "bindgen.yml")
	must.M(os.WriteFile(path, []byte(yml), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, logger.Discard(), path)
	}()

	// waitFor polls the wrapper until it contains want. touch runs between
	// polls, spaced wider than the debounce so each write triggers a run.
	waitFor := func(want string, touch func()) bool {
		deadline := time.Now().Add(10 * time.Second)
		for time.Now().Before(deadline) {
			data, err := os.ReadFile(filepath.Join(dst, "foo.v"))
			if err == nil && strings.Contains(string(data), want) {
				return true
			}
			if touch != nil {
				touch()
			}
			time.Sleep(2 * settle)
		}
		return false
	}

	if !waitFor("pub fn one(", nil) {
		t.Fatal("the first run did not write the wrapper")
	}

	changed := waitFor("pub fn two(", func() {
		must.M(os.WriteFile(header, []byte("int Foo_One(void);\nint Foo_Two(void);\n"), 0644))
	})
	if !changed {
		t.Error("changing the header did not regenerate the bindings")
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
