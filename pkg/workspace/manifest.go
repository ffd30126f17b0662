package workspace

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const versionKey = "version"

type manifestFields struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

func isJSON(name string) bool {
	return strings.EqualFold(path.Ext(name), ".json")
}

func parseManifest(name string, data []byte) (manifestFields, error) {
	var fields manifestFields
	var err error
	if isJSON(name) {
		err = json.Unmarshal(data, &fields)
	} else {
		err = yaml.Unmarshal(data, &fields)
	}
	if err != nil {
		return fields, fmt.Errorf("parsing manifest %s: %w", name, err)
	}
	return fields, nil
}

// setManifestVersion rewrites the version of a manifest, leaving everything else as is
func setManifestVersion(name string, data []byte, version string) ([]byte, error) {
	if isJSON(name) {
		return setJSONVersion(data, version)
	}
	return setYAMLVersion(data, version)
}

func setYAMLVersion(data []byte, version string) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("manifest is not a yaml mapping")
	}

	root := doc.Content[0]
	found := false
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == versionKey {
			node := root.Content[i+1]
			node.Kind = yaml.ScalarNode
			node.Tag = "!!str"
			node.Value = version
			found = true
			break
		}
	}
	if !found {
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: versionKey},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: version},
		)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var rexJSONVersion = regexp.MustCompile(`("version"\s*:\s*")([^"]*)(")`)

// setJSONVersion edits the version in place, so formatting and key order are kept
func setJSONVersion(data []byte, version string) ([]byte, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("manifest is not valid json")
	}
	current := json.Get(data, versionKey).ToString()

	replaced := false
	out := rexJSONVersion.ReplaceAllFunc(data, func(m []byte) []byte {
		sub := rexJSONVersion.FindSubmatch(m)
		if replaced || string(sub[2]) != current {
			return m
		}
		replaced = true
		return append(append(append([]byte{}, sub[1]...), version...), sub[3]...)
	})
	if !replaced {
		return nil, fmt.Errorf("no top-level version field in json manifest")
	}
	if got := json.Get(out, versionKey).ToString(); got != version {
		return nil, fmt.Errorf("could not rewrite top-level version in json manifest")
	}
	return out, nil
}
