// Package run implements the main logic for the standingen tool in a
// testable way.
package run

import (
	"bytes"
	"errors"
	"fmt"
	"go/types"
	"io"
	"os"
	"sort"
	"strings"
	"text/template"

	"github.com/alexflint/go-arg"
	"github.com/dave/dst/decorator"
	"golang.org/x/tools/go/packages"
)

// Interfaces - Public

// FileSystem interface for mocking.
type FileSystem interface {
	WriteFile(name string, data []byte, perm os.FileMode) error
}

// PackageLoader loads the type-checked package the generator was invoked
// in, including its direct imports.
type PackageLoader interface {
	Load(dir string) ([]*packages.Package, error)
}

// Structs - Public

// GoPackageLoader is the production PackageLoader, backed by go/packages.
type GoPackageLoader struct{}

// Load type-checks the package in dir with source for its dependencies.
func (GoPackageLoader) Load(dir string) ([]*packages.Package, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedImports |
			packages.NeedTypes | packages.NeedTypesInfo | packages.NeedSyntax | packages.NeedDeps,
		Dir: dir,
	}

	pkgs, err := packages.Load(cfg, ".")
	if err != nil {
		return nil, fmt.Errorf("loading package in %s: %w", dir, err)
	}

	for _, pkg := range pkgs {
		for _, pkgErr := range pkg.Errors {
			return nil, fmt.Errorf("%w: %s", errPackageLoad, pkgErr.Msg)
		}
	}

	if len(pkgs) == 0 {
		return nil, errPackageNotFound
	}

	return pkgs, nil
}

// Structs - Private

// cliArgs defines the command-line arguments for the generator.
type cliArgs struct {
	Interface string `arg:"positional,required" help:"interface to build a double for (e.g. Store or pkg.Store)"`
	Name      string `arg:"--name"              help:"name for the generated double (defaults to <Interface>Double)"`
}

// fileModel is everything the templates need to render one double file.
type fileModel struct {
	Package    string
	Imports    []string
	Interface  string
	DoubleName string
	Methods    []methodModel
}

type methodModel struct {
	Name        string
	Params      string
	FixedArgs   []string
	VariadicArg string
	Results     []resultModel
	ReturnTypes string
	ResultNames string
}

type resultModel struct {
	Name string
	Type string
}

// Functions - Public

// Run executes the standingen tool logic. It takes command-line arguments,
// an environment variable getter, a FileSystem for file operations, and a
// PackageLoader for type information. On success it writes a Go source file
// declaring a typed double for the requested interface, whose methods route
// through standin.Dispatch and standin.FillReturns.
func Run(args []string, getEnv func(string) string, fileSys FileSystem, loader PackageLoader, out io.Writer) error {
	parsed, err := parseArgs(args)
	if err != nil {
		return err
	}

	localName := parsed.Interface
	if idx := strings.LastIndex(localName, "."); idx >= 0 {
		localName = localName[idx+1:]
	}

	doubleName := parsed.Name
	if doubleName == "" {
		doubleName = localName + "Double"
	}

	pkgs, err := loader.Load(".")
	if err != nil {
		return err
	}

	iface, ifacePkg, err := findInterface(pkgs[0], parsed.Interface)
	if err != nil {
		return err
	}

	outPkg := getEnv("GOPACKAGE")
	if outPkg == "" {
		outPkg = pkgs[0].Name
	}

	model := buildModel(iface, ifacePkg, parsed.Interface, doubleName, outPkg)

	code, err := renderDouble(model)
	if err != nil {
		return err
	}

	return writeGeneratedCodeToFile(code, doubleName, outPkg, fileSys, out)
}

// Functions - Private

// parseArgs parses command-line arguments into cliArgs.
func parseArgs(args []string) (cliArgs, error) {
	var parsed cliArgs

	parser, err := arg.NewParser(arg.Config{}, &parsed)
	if err != nil {
		return cliArgs{}, fmt.Errorf("failed to create argument parser: %w", err)
	}

	var cmdArgs []string
	if len(args) > 1 {
		cmdArgs = args[1:]
	}

	err = parser.Parse(cmdArgs)
	if err != nil {
		return cliArgs{}, fmt.Errorf("failed to parse arguments: %w", err)
	}

	return parsed, nil
}

// findInterface resolves name within the loaded package. An unqualified
// name is looked up in the package itself; a qualified name like pkg.Store
// is looked up in the matching direct import.
func findInterface(loaded *packages.Package, name string) (*types.Interface, *types.Package, error) {
	qualifier := ""
	local := name

	if idx := strings.LastIndex(name, "."); idx >= 0 {
		qualifier, local = name[:idx], name[idx+1:]
	}

	pkg := loaded.Types
	if qualifier != "" {
		pkg = nil

		for _, imp := range loaded.Imports {
			if imp.Types != nil && imp.Types.Name() == qualifier {
				pkg = imp.Types

				break
			}
		}

		if pkg == nil {
			return nil, nil, fmt.Errorf("%w: no import named %q", errPackageNotFound, qualifier)
		}
	}

	obj := pkg.Scope().Lookup(local)
	if obj == nil {
		return nil, nil, fmt.Errorf("%w: %s in package %s", errInterfaceNotFound, local, pkg.Name())
	}

	iface, ok := obj.Type().Underlying().(*types.Interface)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s is a %s", errNotAnInterface, local, obj.Type().Underlying())
	}

	return iface, pkg, nil
}

// buildModel flattens the interface's method set into render-ready strings.
// Types from the output package itself stay unqualified; everything else is
// qualified by package name and recorded as an import.
func buildModel(iface *types.Interface, ifacePkg *types.Package, ifaceName, doubleName, outPkg string) fileModel {
	imports := map[string]bool{"github.com/standin/standin": true}

	qual := func(pkg *types.Package) string {
		if pkg.Name() == outPkg {
			return ""
		}

		imports[pkg.Path()] = true

		return pkg.Name()
	}

	display := ifaceName
	if !strings.Contains(display, ".") && ifacePkg.Name() != outPkg {
		display = ifacePkg.Name() + "." + display
	}

	methods := make([]methodModel, 0, iface.NumMethods())
	for i := range iface.NumMethods() {
		methods = append(methods, buildMethodModel(iface.Method(i), qual))
	}

	paths := make([]string, 0, len(imports))
	for path := range imports {
		paths = append(paths, path)
	}

	sort.Strings(paths)

	return fileModel{
		Package:    outPkg,
		Imports:    paths,
		Interface:  display,
		DoubleName: doubleName,
		Methods:    methods,
	}
}

func buildMethodModel(method *types.Func, qual types.Qualifier) methodModel {
	sig := method.Type().(*types.Signature) //nolint:forcetypeassert // method types are always signatures

	model := methodModel{Name: method.Name()}

	params := make([]string, 0, sig.Params().Len())

	for j := range sig.Params().Len() {
		param := sig.Params().At(j)
		name := paramName(param.Name(), j)

		if sig.Variadic() && j == sig.Params().Len()-1 {
			elem := param.Type().(*types.Slice).Elem() //nolint:forcetypeassert // variadic params are slices
			params = append(params, name+" ..."+types.TypeString(elem, qual))
			model.VariadicArg = name

			continue
		}

		params = append(params, name+" "+types.TypeString(param.Type(), qual))
		model.FixedArgs = append(model.FixedArgs, name)
	}

	model.Params = strings.Join(params, ", ")

	resultNames := make([]string, 0, sig.Results().Len())
	resultTypes := make([]string, 0, sig.Results().Len())

	for j := range sig.Results().Len() {
		name := fmt.Sprintf("out%d", j)
		typ := types.TypeString(sig.Results().At(j).Type(), qual)
		model.Results = append(model.Results, resultModel{Name: name, Type: typ})
		resultNames = append(resultNames, name)
		resultTypes = append(resultTypes, typ)
	}

	model.ResultNames = strings.Join(resultNames, ", ")

	switch len(resultTypes) {
	case 0:
		model.ReturnTypes = ""
	case 1:
		model.ReturnTypes = " " + resultTypes[0]
	default:
		model.ReturnTypes = " (" + strings.Join(resultTypes, ", ") + ")"
	}

	return model
}

// paramName keeps the declared name unless it is missing or collides with
// an identifier the generated body introduces.
func paramName(name string, index int) string {
	reserved := name == "" || name == "_" ||
		name == "sd" || name == "results" || name == "err" || name == "callArgs" ||
		strings.HasPrefix(name, "out")
	if reserved {
		return fmt.Sprintf("arg%d", index)
	}

	return name
}

// renderDouble executes the templates and round-trips the result through a
// DST parse, which both validates the generated code and normalizes its
// formatting.
func renderDouble(model fileModel) (string, error) {
	var buf bytes.Buffer

	err := headerTmpl.Execute(&buf, model)
	if err != nil {
		return "", fmt.Errorf("failed to execute header template: %w", err)
	}

	for _, method := range model.Methods {
		err = methodTmpl.Execute(&buf, struct {
			methodModel
			DoubleName string
		}{method, model.DoubleName})
		if err != nil {
			return "", fmt.Errorf("failed to execute method template: %w", err)
		}
	}

	file, err := decorator.Parse(buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("generated code does not parse: %w", err)
	}

	var formatted bytes.Buffer

	err = decorator.Fprint(&formatted, file)
	if err != nil {
		return "", fmt.Errorf("failed to print generated code: %w", err)
	}

	return formatted.String(), nil
}

// writeGeneratedCodeToFile writes the generated code to <doubleName>.go,
// with a _test suffix when generating into a test package.
func writeGeneratedCodeToFile(code, doubleName, pkgName string, fileSys FileSystem, out io.Writer) error {
	const generatedFilePermissions = 0o600

	filename := doubleName + ".go"
	if strings.HasSuffix(pkgName, "_test") {
		filename = doubleName + "_test.go"
	}

	err := fileSys.WriteFile(filename, []byte(code), generatedFilePermissions)
	if err != nil {
		return fmt.Errorf("error writing %s: %w", filename, err)
	}

	fmt.Fprintf(out, "%s written successfully.\n", filename)

	return nil
}

// unexported variables.
var (
	errPackageLoad       = errors.New("package load failed")
	errPackageNotFound   = errors.New("package not found")
	errInterfaceNotFound = errors.New("interface not found")
	errNotAnInterface    = errors.New("not an interface")

	//nolint:gochecknoglobals // templates are hardcoded constants, parsed once
	headerTmpl = template.Must(template.New("header").Parse(headerTemplate))
	//nolint:gochecknoglobals // templates are hardcoded constants, parsed once
	methodTmpl = template.Must(template.New("method").Funcs(template.FuncMap{
		"join": strings.Join,
	}).Parse(methodTemplate))
)

const headerTemplate = `// Code generated by standingen. DO NOT EDIT.

package {{.Package}}

import (
{{- range .Imports}}
	"{{.}}"
{{- end}}
)

// {{.DoubleName}} is a typed double for {{.Interface}}. Its methods route
// every call through the Space registered under T and fill their returns
// from the declared responses.
type {{.DoubleName}} struct {
	T standin.TestReporter
}
`

const methodTemplate = `
func (sd *{{.DoubleName}}) {{.Name}}({{.Params}}){{.ReturnTypes}} {
{{- if .VariadicArg}}
{{- if .FixedArgs}}
	callArgs := []any{{"{"}}{{join .FixedArgs ", "}}{{"}"}}
{{- else}}
	callArgs := make([]any, 0, len({{.VariadicArg}}))
{{- end}}
	for _, v := range {{.VariadicArg}} {
		callArgs = append(callArgs, v)
	}

	results, err := standin.Dispatch(sd.T, sd, "{{.Name}}", callArgs...)
{{- else}}
	results, err := standin.Dispatch(sd.T, sd, "{{.Name}}"{{range .FixedArgs}}, {{.}}{{end}})
{{- end}}
{{- if .Results}}

{{- range .Results}}
	var {{.Name}} {{.Type}}
{{- end}}

	standin.FillReturns(sd.T, results, err{{range .Results}}, &{{.Name}}{{end}})

	return {{.ResultNames}}
{{- else}}

	standin.FillReturns(sd.T, results, err)
{{- end}}
}
`
