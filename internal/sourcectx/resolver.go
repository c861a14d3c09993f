// internal/sourcectx/resolver.go
package sourcectx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
	"go.uber.org/zap"

	"github.com/xkilldash9x/logsurgeon/api/schemas"
	"github.com/xkilldash9x/logsurgeon/internal/config"
)

const defaultMaxSnippetLines = 60

// Resolver locates the Java source file behind a stack frame and cuts a
// numbered snippet of the enclosing method or constructor. Lookups are
// best-effort: a missing root, absent file, or unparseable source yields
// (_, false) and never an error, because source context only enriches
// prompts and must not block fix generation.
type Resolver struct {
	root     string
	maxLines int
	logger   *zap.Logger

	indexOnce sync.Once
	index     map[string][]string // base file name -> candidate paths
}

// NewResolver creates a resolver rooted at cfg.Root. An empty root disables
// all lookups.
func NewResolver(cfg config.SourceConfig, logger *zap.Logger) *Resolver {
	maxLines := cfg.MaxSnippetLines
	if maxLines <= 0 {
		maxLines = defaultMaxSnippetLines
	}
	return &Resolver{
		root:     cfg.Root,
		maxLines: maxLines,
		logger:   logger.Named("sourcectx"),
	}
}

// Snippet returns a line-numbered excerpt of the method enclosing the
// frame's line, with the frame line itself marked. The second return is
// false whenever the frame cannot be resolved to readable source.
func (r *Resolver) Snippet(frame schemas.StackFrame) (string, bool) {
	if r.root == "" || frame.File == "" || frame.Line <= 0 || frame.Native {
		return "", false
	}

	path, ok := r.locate(frame)
	if !ok {
		return "", false
	}

	src, err := os.ReadFile(path)
	if err != nil {
		r.logger.Debug("Could not read located source file.", zap.String("path", path), zap.Error(err))
		return "", false
	}

	start, end, ok := enclosingMethodSpan(src, frame.Line)
	if !ok {
		// No enclosing declaration (field initializer, mangled line info):
		// fall back to a plain window around the frame line.
		start, end = frame.Line-r.maxLines/2, frame.Line+r.maxLines/2
	}

	snippet := renderSnippet(src, start, end, frame.Line, r.maxLines)
	if snippet == "" {
		return "", false
	}
	return snippet, true
}

// locate maps a frame to a file under the root. Frames only carry a base
// name ("UserService.java"), so candidates are disambiguated through the
// package fragment of the declaring class.
func (r *Resolver) locate(frame schemas.StackFrame) (string, bool) {
	r.indexOnce.Do(r.buildIndex)

	candidates := r.index[filepath.Base(frame.File)]
	if len(candidates) == 0 {
		return "", false
	}
	if len(candidates) == 1 {
		return candidates[0], true
	}

	// "com.example.service.UserService" -> "com/example/service".
	if idx := strings.LastIndex(frame.Class, "."); idx > 0 {
		fragment := strings.ReplaceAll(frame.Class[:idx], ".", string(filepath.Separator))
		for _, candidate := range candidates {
			if strings.Contains(candidate, fragment) {
				return candidate, true
			}
		}
	}
	return candidates[0], true
}

func (r *Resolver) buildIndex() {
	r.index = make(map[string][]string)

	walkErr := filepath.Walk(r.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable subtrees are skipped, not fatal
		}
		if info.IsDir() {
			switch info.Name() {
			case ".git", "target", "build", "node_modules", ".gradle":
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(info.Name(), ".java") {
			r.index[info.Name()] = append(r.index[info.Name()], path)
		}
		return nil
	})
	if walkErr != nil {
		r.logger.Debug("Source root walk ended early.", zap.String("root", r.root), zap.Error(walkErr))
	}
	r.logger.Debug("Source index built.", zap.String("root", r.root), zap.Int("files", len(r.index)))
}

// enclosingMethodSpan parses the source and returns the 1-based line span of
// the innermost method, constructor, or static initializer covering line.
func enclosingMethodSpan(src []byte, line int) (start, end int, ok bool) {
	parser := sitter.NewParser()
	parser.SetLanguage(java.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil || tree == nil {
		return 0, 0, false
	}
	defer tree.Close()

	row := uint32(line - 1)
	var best *sitter.Node

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil || n.StartPoint().Row > row || n.EndPoint().Row < row {
			return
		}
		switch n.Type() {
		case "method_declaration", "constructor_declaration", "static_initializer":
			best = n
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(tree.RootNode())

	if best == nil {
		return 0, 0, false
	}
	return int(best.StartPoint().Row) + 1, int(best.EndPoint().Row) + 1, true
}

// renderSnippet cuts [startLine, endLine] out of src, shrinking the window
// around markLine when it exceeds maxLines, and prefixes each line with an
// aligned number. The marked line gets an arrow prefix.
func renderSnippet(src []byte, startLine, endLine, markLine, maxLines int) string {
	lines := strings.Split(string(src), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 || markLine < 1 || markLine > len(lines) {
		return ""
	}

	if startLine < 1 {
		startLine = 1
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > endLine {
		return ""
	}

	if endLine-startLine+1 > maxLines {
		startLine = markLine - maxLines/2
		if startLine < 1 {
			startLine = 1
		}
		endLine = startLine + maxLines - 1
		if endLine > len(lines) {
			endLine = len(lines)
			if endLine-maxLines+1 > 0 {
				startLine = endLine - maxLines + 1
			} else {
				startLine = 1
			}
		}
	}

	width := len(fmt.Sprintf("%d", endLine))
	var b strings.Builder
	for i := startLine; i <= endLine; i++ {
		if i == markLine {
			fmt.Fprintf(&b, "-> %*d: %s\n", width, i, lines[i-1])
		} else {
			fmt.Fprintf(&b, "   %*d: %s\n", width, i, lines[i-1])
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}
