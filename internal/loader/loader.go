// Package loader finds Python packages on a set of search paths and builds
// their API trees.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/adelyne/pydex/internal/docstring"
	"github.com/adelyne/pydex/internal/logger"
	"github.com/adelyne/pydex/internal/model"
	"github.com/adelyne/pydex/internal/pysrc"
)

var log = logger.ForComponent("loader")

// ModuleNotFoundError reports a package or module that no search path
// contains.
type ModuleNotFoundError struct {
	Name string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("module '%s' could not be found in the search paths", e.Name)
}

// Options configures a Loader.
type Options struct {
	// SearchPaths are tried in order; the first hit wins.
	SearchPaths []string
	// Style selects the docstring parser. StyleNone leaves docstrings raw.
	Style docstring.Style
	// Excludes are doublestar patterns matched against slash paths relative
	// to the package root, e.g. "**/test_*.py".
	Excludes []string
	// Workers bounds concurrent module scans. Zero or one means serial.
	Workers int
}

type Loader struct {
	opts Options
}

func New(opts Options) *Loader {
	if len(opts.SearchPaths) == 0 {
		opts.SearchPaths = []string{"."}
	}
	return &Loader{opts: opts}
}

// Load resolves a dotted module name and extracts its full tree. The returned
// object is a package or module whose Path is the dotted name.
func (l *Loader) Load(ctx context.Context, name string) (*model.Object, error) {
	parts := strings.Split(name, ".")
	top := parts[0]

	path, isPackage, err := l.find(top)
	if err != nil {
		return nil, err
	}

	log.Debug("loading module", "name", name, "path", path, "package", isPackage)

	var obj *model.Object
	if isPackage {
		obj, err = l.loadPackage(ctx, top, path, path)
	} else {
		obj, err = l.loadModule(ctx, top, path)
	}
	if err != nil {
		return nil, err
	}
	obj.Path = top
	rewirePaths(obj)

	if len(parts) > 1 {
		sub, err := obj.Resolve(strings.Join(parts[1:], "."))
		if err != nil {
			return nil, &ModuleNotFoundError{Name: name}
		}
		return sub, nil
	}
	return obj, nil
}

// find locates the top-level package directory or module file.
func (l *Loader) find(name string) (string, bool, error) {
	for _, search := range l.opts.SearchPaths {
		dir := filepath.Join(search, name)
		if info, err := os.Stat(filepath.Join(dir, "__init__.py")); err == nil && !info.IsDir() {
			return dir, true, nil
		}
		file := filepath.Join(search, name+".py")
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			return file, false, nil
		}
	}
	return "", false, &ModuleNotFoundError{Name: name}
}

func (l *Loader) excluded(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range l.opts.Excludes {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// loadPackage extracts a package directory: __init__.py becomes the package
// object, sibling modules and subpackages become members.
func (l *Loader) loadPackage(ctx context.Context, name, dir, root string) (*model.Object, error) {
	pkg, err := l.loadModule(ctx, name, filepath.Join(dir, "__init__.py"))
	if err != nil {
		return nil, err
	}
	pkg.Kind = model.KindPackage

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading package directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	type slot struct {
		name string
		obj  *model.Object
		err  error
	}
	var slots []*slot
	g, gctx := errgroup.WithContext(ctx)
	if l.opts.Workers > 1 {
		g.SetLimit(l.opts.Workers)
	} else {
		g.SetLimit(1)
	}

	for _, entry := range entries {
		entryPath := filepath.Join(dir, entry.Name())
		if l.excluded(root, entryPath) {
			continue
		}

		if entry.IsDir() {
			if entry.Name() == "__pycache__" || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			if _, err := os.Stat(filepath.Join(entryPath, "__init__.py")); err != nil {
				continue
			}
			s := &slot{name: entry.Name()}
			slots = append(slots, s)
			g.Go(func() error {
				s.obj, s.err = l.loadPackage(gctx, s.name, entryPath, root)
				return s.err
			})
			continue
		}

		if !strings.HasSuffix(entry.Name(), ".py") || entry.Name() == "__init__.py" {
			continue
		}
		s := &slot{name: strings.TrimSuffix(entry.Name(), ".py")}
		slots = append(slots, s)
		g.Go(func() error {
			s.obj, s.err = l.loadModule(gctx, s.name, entryPath)
			return s.err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, s := range slots {
		pkg.AddMember(s.obj)
	}
	return pkg, nil
}

// loadModule scans one source file into a module object.
func (l *Loader) loadModule(ctx context.Context, name, file string) (*model.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	source, enc, err := pysrc.ReadFileAsUTF8(file)
	if err != nil {
		return nil, fmt.Errorf("reading module '%s': %w", name, err)
	}
	if enc.Encoding != "utf-8" {
		log.Debug("decoded non-utf8 source", "file", file, "encoding", enc.Encoding)
	}

	scanned := pysrc.ScanModule(source)

	obj := model.NewObject(name, model.KindModule)
	obj.File = file
	if scanned.Docstring != "" {
		obj.Docstring = model.NewDocstring(scanned.Docstring, scanned.DocstringLine)
		obj.Docstring.Parent = obj
	}
	for _, attr := range scanned.Attributes {
		obj.AddMember(convertAttribute(attr, file))
	}
	for _, node := range scanned.Children {
		obj.AddMember(convertNode(node, file))
	}

	l.parseDocstrings(obj)
	return obj, nil
}

func convertNode(node *pysrc.Node, file string) *model.Object {
	kind := model.KindFunction
	if node.Kind == "class" {
		kind = model.KindClass
	}

	obj := model.NewObject(node.Name, kind)
	obj.File = file
	obj.LineStart = node.LineStart
	obj.LineEnd = node.LineEnd
	obj.Parameters = model.NewParameters(paramsOf(node)...)
	obj.Returns = node.Returns
	obj.Labels = labelsOf(node)

	if node.Docstring != "" {
		obj.Docstring = model.NewDocstring(node.Docstring, node.DocstringLine)
		obj.Docstring.Parent = obj
	}
	for _, attr := range node.Attributes {
		obj.AddMember(convertAttribute(attr, file))
	}
	for _, child := range node.Children {
		obj.AddMember(convertNode(child, file))
	}
	return obj
}

func convertAttribute(attr pysrc.Attribute, file string) *model.Object {
	obj := model.NewObject(attr.Name, model.KindAttribute)
	obj.File = file
	obj.LineStart = attr.Line
	obj.LineEnd = attr.Line
	obj.Annotation = attr.Annotation
	obj.Value = attr.Value
	if attr.Docstring != "" {
		obj.Docstring = model.NewDocstring(attr.Docstring, attr.DocstringLine)
		obj.Docstring.Parent = obj
	}
	return obj
}

func paramsOf(node *pysrc.Node) []model.Parameter {
	var params []model.Parameter
	for _, p := range node.Parameters.List() {
		switch p.Kind {
		case model.VarPositional:
			if !strings.HasPrefix(p.Name, "*") {
				p.Name = "*" + p.Name
			}
		case model.VarKeyword:
			if !strings.HasPrefix(p.Name, "**") {
				p.Name = "**" + strings.TrimLeft(p.Name, "*")
			}
		}
		params = append(params, p)
	}
	return params
}

var decoratorLabels = map[string]string{
	"property":        "property",
	"cached_property": "cached",
	"staticmethod":    "staticmethod",
	"classmethod":     "classmethod",
	"abstractmethod":  "abstractmethod",
	"dataclass":       "dataclass",
	"overload":        "overload",
}

func labelsOf(node *pysrc.Node) []string {
	var labels []string
	if node.Async {
		labels = append(labels, "async")
	}
	for _, dec := range node.Decorators {
		name := dec
		if i := strings.IndexByte(name, '('); i >= 0 {
			name = name[:i]
		}
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			name = name[i+1:]
		}
		if label, ok := decoratorLabels[strings.TrimSpace(name)]; ok {
			labels = append(labels, label)
		}
	}
	return labels
}

// parseDocstrings runs the configured docstring parser over a subtree.
func (l *Loader) parseDocstrings(obj *model.Object) {
	if l.opts.Style == "" || l.opts.Style == docstring.StyleNone {
		return
	}
	if obj.Docstring != nil {
		obj.Docstring.Parsed = docstring.Parse(obj.Docstring, l.opts.Style)
	}
	for _, member := range obj.Members() {
		l.parseDocstrings(member)
	}
}

// rewirePaths recomputes dotted paths after the root's own path is set.
func rewirePaths(obj *model.Object) {
	for _, member := range obj.Members() {
		if obj.Path != "" {
			member.Path = obj.Path + "." + member.Name
		} else {
			member.Path = member.Name
		}
		rewirePaths(member)
	}
}
