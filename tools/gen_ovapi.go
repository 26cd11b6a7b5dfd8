// Package main extracts the exported C API symbol list from OpenVINO headers.
//
// The ov package resolves every native entry point by name in
// resolveAPITable; this tool scans the toolkit's ov_*.h headers for
// OPENVINO_C_API declarations and prints the symbol inventory, so the
// registered set can be diffed against what a given toolkit release actually
// exports.
//
// NOTE: This uses simple regex-based parsing which works for the current
// OpenVINO C API headers but may be fragile with future header changes. A
// proper C parser like tree-sitter-c would be more robust.
//
// Usage:
//
//	go run tools/gen_ovapi.go <openvino-install>/runtime/include/openvino/c
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// exportPattern matches the macro that marks an exported C API function:
//
//	OPENVINO_C_API(ov_status_e)
//	ov_core_create(ov_core_t** core);
//
// The declaration's name is on the line following the macro (or on the same
// line in older headers).
var (
	exportPattern   = regexp.MustCompile(`OPENVINO_C_API\(([^)]+)\)`)
	functionPattern = regexp.MustCompile(`^\s*(ov_\w+)\s*\(`)
	inlinePattern   = regexp.MustCompile(`OPENVINO_C_API\([^)]+\)\s+(ov_\w+)\s*\(`)
)

type symbol struct {
	Name       string
	ReturnType string
	Header     string
	LineNum    int
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <path-to-openvino-c-headers-dir>\n", os.Args[0])
		os.Exit(1)
	}

	headerDir := os.Args[1]
	headers, err := filepath.Glob(filepath.Join(headerDir, "ov_*.h"))
	if err != nil || len(headers) == 0 {
		fmt.Fprintf(os.Stderr, "No ov_*.h headers found under %q\n", headerDir)
		os.Exit(1)
	}
	sort.Strings(headers)

	var symbols []symbol
	for _, header := range headers {
		parsed, err := parseHeader(header)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to parse %s: %v\n", header, err)
			os.Exit(1)
		}
		symbols = append(symbols, parsed...)
	}

	// Duplicate names across headers indicate a parser bug.
	seen := make(map[string]string)
	for _, s := range symbols {
		if prev, ok := seen[s.Name]; ok {
			fmt.Fprintf(os.Stderr, "Error: symbol %s declared in both %s and %s\n", s.Name, prev, s.Header)
			os.Exit(1)
		}
		seen[s.Name] = s.Header
	}

	// Sanity-check against known anchors; if these are missing the regexes
	// no longer match the header layout.
	for _, anchor := range []string{"ov_core_create", "ov_tensor_create", "ov_model_free", "ov_free"} {
		if _, ok := seen[anchor]; !ok {
			fmt.Fprintf(os.Stderr, "Error: anchor symbol %q not found. Parser may be broken.\n", anchor)
			os.Exit(1)
		}
	}

	if len(symbols) < 100 || len(symbols) > 400 {
		fmt.Fprintf(os.Stderr, "Warning: parsed %d symbols, expected roughly 150-300. Headers may have changed.\n", len(symbols))
	}

	emit(symbols, headerDir)
}

func parseHeader(path string) ([]symbol, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var symbols []symbol
	base := filepath.Base(path)

	scanner := bufio.NewScanner(file)
	lineNum := 0
	pendingReturn := ""

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "*") || strings.HasPrefix(trimmed, "/*") {
			continue
		}

		if m := inlinePattern.FindStringSubmatch(line); len(m) > 1 {
			ret := exportPattern.FindStringSubmatch(line)
			symbols = append(symbols, symbol{Name: m[1], ReturnType: strings.TrimSpace(ret[1]), Header: base, LineNum: lineNum})
			pendingReturn = ""
			continue
		}

		if pendingReturn != "" {
			if m := functionPattern.FindStringSubmatch(line); len(m) > 1 {
				symbols = append(symbols, symbol{Name: m[1], ReturnType: pendingReturn, Header: base, LineNum: lineNum})
			}
			pendingReturn = ""
			continue
		}

		if m := exportPattern.FindStringSubmatch(line); len(m) > 1 {
			pendingReturn = strings.TrimSpace(m[1])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return symbols, nil
}

func emit(symbols []symbol, headerDir string) {
	fmt.Printf("// Auto-generated from: %s\n", headerDir)
	fmt.Printf("// Generated on: %s\n", time.Now().Format(time.RFC3339))
	fmt.Println("// Generator: tools/gen_ovapi.go")
	fmt.Printf("// Parsed %d exported symbols\n", len(symbols))
	fmt.Println("//")
	fmt.Println("// Diff this list against the reg(...) calls in ov/ovapi.go.")
	fmt.Println()

	byHeader := make(map[string][]symbol)
	var headers []string
	for _, s := range symbols {
		if _, ok := byHeader[s.Header]; !ok {
			headers = append(headers, s.Header)
		}
		byHeader[s.Header] = append(byHeader[s.Header], s)
	}
	sort.Strings(headers)

	for _, header := range headers {
		fmt.Printf("// %s\n", header)
		for _, s := range byHeader[header] {
			fmt.Printf("%-60s // %s\n", s.Name, s.ReturnType)
		}
		fmt.Println()
	}
}
