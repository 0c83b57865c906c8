// Package plugin provides plugin creation commands.
package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/andrei-cloud/go_protoop/internal/config"
	"github.com/andrei-cloud/go_protoop/internal/plugin"
	"github.com/andrei-cloud/go_protoop/pkg/protoop"
	"github.com/spf13/cobra"
)

var (
	pluginDesc    string
	pluginVersion string
	pluginAuthor  string
	pluginRuntime string
	pluginOps     []string
)

var validName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// NewCreateCommand creates the create command.
func NewCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a new plugin",
		Long: `Create a new plugin in the plugin directory. This will:
1. Create the plugin directory
2. Write its manifest binding the requested protocol operations
3. Write a TinyGo (wasm) or Lua skeleton exporting one function per operation`,
		Args: cobra.ExactArgs(1),
		RunE: runCreatePlugin,
	}

	// Add flags.
	cmd.Flags().StringVarP(&pluginDesc, "desc", "d", "", "Plugin description")
	cmd.Flags().StringVarP(&pluginVersion, "version", "v", "0.1.0", "Plugin version")
	cmd.Flags().StringVarP(&pluginAuthor, "author", "a", "go_protoop", "Plugin author")
	cmd.Flags().StringVarP(&pluginRuntime, "runtime", "r", "wasm", "Plugin runtime (wasm, lua)")
	cmd.Flags().StringSliceVarP(&pluginOps, "protoop", "p", []string{"noop"}, "Protocol operations to replace")

	return cmd
}

func runCreatePlugin(cmd *cobra.Command, args []string) error {
	name := strings.ToLower(args[0])
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid plugin name %q", args[0])
	}

	files, err := scaffold(name, plugin.Runtime(strings.ToLower(pluginRuntime)), pluginOps)
	if err != nil {
		return err
	}

	dir := filepath.Join(config.Get().Plugin.Path, name)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("plugin directory %s already exists", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create plugin directory: %w", err)
	}

	for file, content := range files {
		if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to create %s: %w", file, err)
		}
	}

	cmd.Printf("Created plugin %s in %s\n", name, dir)
	if pluginRuntime == string(plugin.RuntimeWASM) {
		cmd.Printf("Build it with: tinygo build -o %s.wasm -target=wasi -buildmode=c-shared %s\n",
			filepath.Join(dir, name), dir)
	}

	return nil
}

// scaffold returns the files of a new plugin keyed by file name. The
// manifest is validated before anything is written.
func scaffold(name string, runtime plugin.Runtime, ids []string) (map[string]string, error) {
	ops := make([]protoop.Opcode, 0, len(ids))
	for _, id := range ids {
		op, err := protoop.ParseOpcode(id)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}

	var manifest strings.Builder
	fmt.Fprintf(&manifest, "name = %q\nversion = %q\ndescription = %q\nauthor = %q\nruntime = %q\n",
		name, pluginVersion, pluginDesc, pluginAuthor, runtime)
	for _, op := range ops {
		fmt.Fprintf(&manifest, "\n[[protoop]]\nid = %q\n", op.String())
	}

	if _, err := plugin.ParseManifest(manifest.String()); err != nil {
		return nil, err
	}

	files := map[string]string{name + ".toml": manifest.String()}
	switch runtime {
	case plugin.RuntimeLua:
		files[name+".lua"] = luaSkeleton(ops)
	default:
		files["main.go"] = wasmSkeleton(name, ops)
	}

	return files, nil
}

func wasmSkeleton(name string, ops []protoop.Opcode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// Command %s is a protocol operation plugin.\npackage main\n\n", name)
	b.WriteString("import \"github.com/andrei-cloud/go_protoop/pkg/pluginsdk\"\n")
	for _, op := range ops {
		fmt.Fprintf(&b, "\n//export %s\nfunc %s() uint64 {\n", op, exportName(op))
		b.WriteString("\tpluginsdk.LogDebug(\"" + op.String() + "\")\n\treturn 0\n}\n")
	}
	b.WriteString("\nfunc main() {}\n")

	return b.String()
}

func luaSkeleton(ops []protoop.Opcode) string {
	var b strings.Builder
	for i, op := range ops {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "function %s()\n  protoop.log(%q)\n  return 0\nend\n", op, op.String())
	}

	return b.String()
}

// exportName turns snake_case into a Go identifier.
func exportName(op protoop.Opcode) string {
	parts := strings.Split(op.String(), "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}

	return strings.Join(parts, "")
}
