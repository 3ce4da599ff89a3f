package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"bts-lite/treestore"
)

func jsonBytes(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding node: %w", err)
	}
	return raw, nil
}

func parseValue(s string) (int, error) {
	value, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("value must be an integer, got %q", s)
	}
	return value, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func renderNodeTable(views []treestore.NodeView) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleColoredBright)
	t.AppendHeader(table.Row{"#", "ID", "Value", "Left", "Right", "Parent"})

	for i, v := range views {
		parent := "-"
		if v.ParentID != nil {
			parent = *v.ParentID
		}
		t.AppendRow(table.Row{i + 1, v.ID, v.Value, orDash(v.LeftID), orDash(v.RightID), parent})
	}
	t.Render()
}

func renderNode(v treestore.NodeView) {
	renderNodeTable([]treestore.NodeView{v})
}
