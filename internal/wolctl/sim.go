/**
 * Copyright (c) 2024 Peking University and Peking University
 * Changsha Institute for Computing and Digital Economy
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package wolctl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"PowerSim/internal/util"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

func checkOutputFormat(format string) error {
	switch format {
	case outputTable, outputJSON, outputYAML:
		return nil
	}
	return util.NewCmdError(util.ErrorCmdArg, "Unknown output format %q, expected table, json or yaml", format)
}

type simClient struct {
	base   string
	client *http.Client
}

func newSimClient(c *Config) *simClient {
	return &simClient{
		base:   strings.TrimRight(c.Simulator.URL, "/"),
		client: &http.Client{Timeout: c.SimulatorTimeout()},
	}
}

func (s *simClient) do(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.base+path, nil)
	if err != nil {
		return nil, util.NewCmdError(util.ErrorCmdArg, "Invalid simulator URL %q: %v", s.base, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, util.NewCmdError(util.ErrorNetwork, "Failed to reach simulator: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, util.NewCmdError(util.ErrorNetwork, "Failed to read simulator response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, util.NewCmdError(util.ErrorBackend, "Simulator returned %s for %s %s", resp.Status, method, path)
	}
	if !gjson.ValidBytes(body) {
		return nil, util.NewCmdError(util.ErrorBackend, "Simulator returned invalid JSON for %s", path)
	}
	return body, nil
}

func simQuery(ctx context.Context, w io.Writer, c *Config, path string) error {
	body, err := newSimClient(c).do(ctx, http.MethodGet, path)
	if err != nil {
		return err
	}
	return render(w, body, FlagOutput)
}

// simTrigger posts a trigger. A rejected trigger prints the reply and
// exits with ErrorBackend.
func simTrigger(ctx context.Context, w io.Writer, c *Config, path string) error {
	body, err := newSimClient(c).do(ctx, http.MethodPost, path)
	if err != nil {
		return err
	}
	if err := render(w, body, FlagOutput); err != nil {
		return err
	}

	if !gjson.GetBytes(body, "success").Bool() {
		return &util.CmdError{Code: util.ErrorBackend}
	}
	return nil
}

func render(w io.Writer, body []byte, format string) error {
	switch format {
	case outputJSON:
		fmt.Fprintln(w, gjson.GetBytes(body, "@pretty").Raw)
	case outputYAML:
		out, err := jsonToYAML(body)
		if err != nil {
			return util.NewCmdError(util.ErrorGeneric, "Failed to convert response to YAML: %v", err)
		}
		fmt.Fprint(w, out)
	default:
		util.RenderKeyValueTable(w, flatten(gjson.ParseBytes(body)))
	}
	return nil
}

// jsonToYAML keeps the key order of the JSON document.
func jsonToYAML(body []byte) (string, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(body, &node); err != nil {
		return "", err
	}
	resetStyle(&node)

	out, err := yaml.Marshal(&node)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// resetStyle drops the flow style and quoting inherited from JSON.
func resetStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		resetStyle(c)
	}
}

// flatten turns a JSON object into dotted-key rows, sorted by key.
func flatten(v gjson.Result) [][]string {
	var rows [][]string
	var walk func(prefix string, v gjson.Result)
	walk = func(prefix string, v gjson.Result) {
		if v.IsObject() {
			v.ForEach(func(key, value gjson.Result) bool {
				name := key.String()
				if prefix != "" {
					name = prefix + "." + name
				}
				walk(name, value)
				return true
			})
			return
		}

		value := v.String()
		if v.Type == gjson.Null {
			value = "-"
		}
		rows = append(rows, []string{prefix, value})
	}
	walk("", v)

	sort.SliceStable(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
	return rows
}
