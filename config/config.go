// Package config loads and validates the description of one binding
// generation run.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ardanlabs/bindgen/parser"
	"github.com/ardanlabs/bindgen/partition"
	"github.com/ardanlabs/bindgen/target"
	"github.com/ardanlabs/bindgen/typemap"
)

var (
	ErrMissingField   = errors.New("missing required field")
	ErrNoFiles        = errors.New("no header files configured")
	ErrHeaderNotFound = errors.New("header not found")
	ErrUnknownTarget  = errors.New("unknown target")
)

type Config struct {
	Target          string `yaml:"target"`
	SrcDir          string `yaml:"src_dir"`
	DstDir          string `yaml:"dst_dir"`
	ModuleName      string `yaml:"module_name"`
	NativeLibName   string `yaml:"native_lib_name,omitempty"`
	WrapperFileName string `yaml:"wrapper_file_name,omitempty"`

	// DeclarationFileName is the single declarations file used when
	// SingleFileExport is set.
	DeclarationFileName string `yaml:"declaration_file_name,omitempty"`
	SingleFileExport    bool   `yaml:"single_file_export"`
	CopyHeadersToDstDir bool   `yaml:"copy_headers_to_dst_dir"`

	// UseHeaderFolder places the output of a header in a folder named after
	// the header's folder, unless that folder is BaseSourceFolder.
	UseHeaderFolder  bool   `yaml:"use_header_folder"`
	BaseSourceFolder string `yaml:"base_source_folder"`

	Files                    []string `yaml:"files"`
	ExcludedFiles            []string `yaml:"excluded_files,omitempty"`
	ExcludedFromWrapperFiles []string `yaml:"excluded_from_wrapper_files,omitempty"`
	IncludeFolders           []string `yaml:"include_folders,omitempty"`
	SystemIncludeFolders     []string `yaml:"system_include_folders,omitempty"`
	Defines                  []string `yaml:"defines,omitempty"`

	ExcludeFunctionsThatContain  []string `yaml:"exclude_functions_that_contain,omitempty"`
	StripPrefixFromFunctionNames []string `yaml:"strip_prefix_from_function_names,omitempty"`
	StripEnumItemCommonPrefix    bool     `yaml:"strip_enum_item_common_prefix"`

	TypeOverrides         map[string]string `yaml:"type_overrides,omitempty"`
	ReservedSubstitutions map[string]string `yaml:"reserved_substitutions,omitempty"`
}

// Default returns a configuration holding every default value and none of
// the required ones.
func Default() *Config {
	return &Config{
		Target:                    "v",
		DeclarationFileName:       "c",
		UseHeaderFolder:           true,
		StripEnumItemCommonPrefix: true,
	}
}

// Example returns a complete configuration for binding SDL2.
func Example() *Config {
	c := Default()

	c.SrcDir = "~/SDL2/include"
	c.DstDir = "~/sdl"
	c.ModuleName = "sdl"
	c.NativeLibName = "SDL2"
	c.WrapperFileName = "sdl"
	c.BaseSourceFolder = "include"
	c.Files = []string{"SDL.h"}
	c.ExcludedFiles = []string{"SDL_main", "SDL_assert", "SDL_thread", "SDL_system", "SDL_opengl", "SDL_egl"}
	c.ExcludedFromWrapperFiles = []string{"SDL_stdinc"}
	c.Defines = []string{"SDL_DISABLE_IMMINTRIN_H", "SDL_DISABLE_MMINTRIN_H"}
	c.ExcludeFunctionsThatContain = []string{"SDL_main", "SDL_WinRT", "SDL_vsnprintf"}
	c.StripPrefixFromFunctionNames = []string{"SDL_"}
	c.TypeOverrides = map[string]string{
		"Uint8":  "byte",
		"Sint64": "i64",
	}

	return c
}

// Load reads the configuration at path. Keys that are not known fail the
// load. The result is validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	c, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return c, nil
}

// Decode reads a YAML (or JSON) configuration from r over the defaults and
// validates it.
func Decode(r io.Reader) (*Config, error) {
	c := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// Write encodes the configuration as YAML.
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}

// Validate checks the required fields and normalizes the rest: home
// directories are expanded, file extensions are added to output names and
// removed from exclusion lists.
func (c *Config) Validate() error {
	d, err := c.Dialect()
	if err != nil {
		return err
	}

	required := [][2]string{
		{"module_name", c.ModuleName},
		{"src_dir", c.SrcDir},
		{"dst_dir", c.DstDir},
	}
	if d.Kind == target.V {
		required = append(required, [2]string{"wrapper_file_name", c.WrapperFileName})
	}
	for _, r := range required {
		if strings.TrimSpace(r[1]) == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, r[0])
		}
	}

	if len(c.Files) == 0 {
		return ErrNoFiles
	}

	home, _ := os.UserHomeDir()
	c.SrcDir = expandHome(c.SrcDir, home)
	c.DstDir = expandHome(c.DstDir, home)

	if c.NativeLibName == "" {
		c.NativeLibName = c.ModuleName
	}

	if d.Kind == target.V {
		c.WrapperFileName = withExt(c.WrapperFileName, d.Ext)
		if c.DeclarationFileName == "" {
			c.DeclarationFileName = "c"
		}
		c.DeclarationFileName = withExt(c.DeclarationFileName, d.Ext)
	}

	c.ExcludedFiles = trimHeaderExt(c.ExcludedFiles)
	c.ExcludedFromWrapperFiles = trimHeaderExt(c.ExcludedFromWrapperFiles)

	return nil
}

// Dialect returns the target language of the run.
func (c *Config) Dialect() (*target.Dialect, error) {
	d, err := target.Lookup(c.Target)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, c.Target)
	}
	return d, nil
}

// ResolveFiles returns the path of every configured header. A relative
// name is looked up in the include folders first, then in src_dir.
func (c *Config) ResolveFiles() ([]string, error) {
	paths := make([]string, 0, len(c.Files))

	for _, f := range c.Files {
		path, err := c.resolve(f)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}

	return paths, nil
}

func (c *Config) resolve(file string) (string, error) {
	if filepath.IsAbs(file) {
		if exists(file) {
			return file, nil
		}
		return "", fmt.Errorf("%w: %s", ErrHeaderNotFound, file)
	}

	for _, dir := range c.includeDirs() {
		if path := filepath.Join(dir, file); exists(path) {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrHeaderNotFound, file)
}

// includeDirs lists the include folders resolved against src_dir, followed
// by src_dir itself.
func (c *Config) includeDirs() []string {
	dirs := make([]string, 0, len(c.IncludeFolders)+1)
	for _, dir := range c.IncludeFolders {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(c.SrcDir, dir)
		}
		dirs = append(dirs, dir)
	}
	return append(dirs, c.SrcDir)
}

func (c *Config) ParserOptions() parser.Options {
	return parser.Options{
		IncludeFolders:       c.includeDirs(),
		SystemIncludeFolders: c.SystemIncludeFolders,
		Defines:              c.Defines,
	}
}

func (c *Config) TypemapOptions() typemap.Options {
	return typemap.Options{
		Prefixes:              c.StripPrefixFromFunctionNames,
		Overrides:             c.TypeOverrides,
		ReservedSubstitutions: c.ReservedSubstitutions,
	}
}

func (c *Config) PartitionOptions() partition.Options {
	return partition.Options{
		Module:              c.ModuleName,
		SingleFile:          c.SingleFileExport,
		ExcludeFunctions:    c.ExcludeFunctionsThatContain,
		ExcludedFiles:       c.ExcludedFiles,
		ExcludedFromWrapper: c.ExcludedFromWrapperFiles,
		StripEnumPrefix:     c.StripEnumItemCommonPrefix,
	}
}

// =============================================================================

func expandHome(path, home string) string {
	if home == "" {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

func withExt(name, ext string) string {
	if strings.HasSuffix(name, ext) {
		return name
	}
	return name + ext
}

func trimHeaderExt(files []string) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = strings.TrimSuffix(f, ".h")
	}
	return out
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
