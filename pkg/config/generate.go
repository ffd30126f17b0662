package config

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

var docs = map[string]string{
	"protectedBranch":         "branch written to only by human merges: publications start from pushes to it",
	"requiredApprovals":       "approvals required on a merge request before versions are bumped",
	"automationCommitMarker":  "subject prefix of release commits, which never trigger another bump",
	"automationTrailer":       "trailer key written to release commits and honoured by the loop guard",
	"timeout":                 "wall-clock limit of an engine run, e.g. 30m",
	"remote":                  "git remote to fetch from and push to",
	"tagFormat":               "release tag template, with {name} and {version} placeholders",
	"packages":                "glob patterns of package directories, relative to the repository root",
	"manifest":                "package manifest file name (yaml or json)",
	"changelog":               "changelog file name, in each package directory",
	"buildCommand":            "shell command validating a release, with MONOREL_PACKAGES set (empty: no build)",
	"deployCommand":           "shell command run after publication, with MONOREL_PUBLISHED set (empty: no deployment)",
	"author":                  "identity of release commits and tags",
	"registry":                "where released packages go",
	"registry.kind":           "one of: localfs, s3, exec",
	"registry.path":           "localfs registry location, absolute or under ~/. The default suits local use: on CI, mount persistent storage or use s3",
	"registry.endpoint":       "s3 endpoint, e.g. s3.amazonaws.com or a minio host",
	"registry.bucket":         "s3 bucket",
	"registry.prefix":         "s3 key prefix",
	"registry.accessKeyEnv":   "environment variable holding the s3 access key",
	"registry.secretKeyEnv":   "environment variable holding the s3 secret key",
	"registry.publishCommand": "exec registry: shell command publishing MONOREL_PACKAGE at MONOREL_VERSION",
	"registry.checkCommand":   "exec registry: shell command succeeding when a version is already published (required)",
	"credential":              "push credential, read from a protected pipeline variable",
	"credential.tokenEnv":     "environment variable holding the push token",
	"credential.username":     "user name sent along with the token over https",
	"credential.idTokenEnv":   "environment variable holding the CI job OIDC token",
	"credential.oidcIssuer":   "when set, the job identity is verified against this issuer",
	"logLevel":                "debug, info, warn, error or none",
	"logEncoding":             "console or json",
	"metricsTextfile":         "when set, run metrics are written there in the prometheus text format",
	"report":                  "when set, the JSON run report is written there",
}

// Generate renders the default configuration as a commented YAML document
func Generate() ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(Default()); err != nil {
		return nil, err
	}
	document(&doc, "")

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

func document(node *yaml.Node, prefix string) {
	if node.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		path := prefix + key.Value
		if doc, ok := docs[path]; ok {
			key.HeadComment = doc
		}
		document(value, path+".")
	}
}
