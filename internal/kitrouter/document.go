// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package kitrouter

import "gopkg.in/yaml.v3"

// Document is the declarative description Load parses into a Router.
// It mirrors the `router:` document of the configuration file
// one-to-one, already decoded from YAML by the caller.
type Document struct {
	Clients    StringList                  `yaml:"clients"`
	Interfaces map[string]InterfaceDocument `yaml:"interfaces"`
	QoS        map[string]QoSDocument       `yaml:"qos"`
}

// InterfaceDocument describes one outgoing interface entry.
type InterfaceDocument struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	QoSRefs     []string `yaml:"qos"`
}

// QoSDocument describes one QoS catalog entry. Bandwidth and Netem
// each hold either a scalar string or a map[string]any{"up","down"}
// once decoded from YAML.
type QoSDocument struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Bandwidth   any    `yaml:"bandwidth"`
	Netem       any    `yaml:"netem"`
}

// StringList decodes either a single YAML scalar or a sequence into a
// []string, matching the `clients: <iface> | [<iface>, ...]` grammar.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler (the yaml.v3 node-based
// form) for StringList.
func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	var single string
	if err := value.Decode(&single); err == nil {
		*s = StringList{single}
		return nil
	}

	var multi []string
	if err := value.Decode(&multi); err != nil {
		return err
	}
	*s = StringList(multi)
	return nil
}
