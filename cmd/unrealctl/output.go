package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/fischp/unreal-engine-mcp/internal/protocol"
)

var (
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
	dim   = color.New(color.Faint).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
)

func statusBadge(resp protocol.Response) string {
	if resp.Success() {
		return green("● success")
	}
	return red(fmt.Sprintf("● error (%s)", resp.Kind()))
}

// printResponse writes resp either as one compact JSON line (raw) or as a
// status line followed by indented JSON.
func printResponse(w io.Writer, resp protocol.Response, raw bool) error {
	if raw {
		data, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s %s\n", bold("Status:"), statusBadge(resp))
	if msg := resp.Message(); msg != "" && !resp.Success() {
		fmt.Fprintf(w, "%s %s\n", bold("Error:"), msg)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
