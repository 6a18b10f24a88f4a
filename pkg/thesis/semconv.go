// Copyright (c) Bas van Beek 2022.
// Copyright (c) Tetrate, Inc 2021.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package thesis

import (
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	semconvGroupID = "thesis"
	semconvBrief   = "Thesis claims as telemetry"
)

// SemanticAttribute is a single attribute of a semantic convention group.
type SemanticAttribute struct {
	ID               string `yaml:"id"`
	Type             string `yaml:"type"`
	Brief            string `yaml:"brief"`
	RequirementLevel string `yaml:"requirement_level"`
}

// SemanticGroup is a semantic convention group.
type SemanticGroup struct {
	ID         string              `yaml:"id"`
	Type       string              `yaml:"type"`
	Prefix     string              `yaml:"prefix"`
	Brief      string              `yaml:"brief"`
	Attributes []SemanticAttribute `yaml:"attributes"`
}

// SemanticConventions is the root of a semantic convention registry file.
type SemanticConventions struct {
	Groups []SemanticGroup `yaml:"groups"`
}

// SemanticConvention describes the claims as one span group holding a boolean
// attribute per claim, keyed by the last segment of the claim name.
func SemanticConvention(claims []Claim) SemanticConventions {
	group := SemanticGroup{
		ID:         semconvGroupID,
		Type:       "span",
		Prefix:     semconvGroupID,
		Brief:      semconvBrief,
		Attributes: make([]SemanticAttribute, 0, len(claims)),
	}
	for _, c := range claims {
		id := c.Name
		if i := strings.LastIndexByte(id, '.'); i >= 0 {
			id = id[i+1:]
		}
		group.Attributes = append(group.Attributes, SemanticAttribute{
			ID:               id,
			Type:             "boolean",
			Brief:            c.Brief,
			RequirementLevel: "recommended",
		})
	}
	return SemanticConventions{Groups: []SemanticGroup{group}}
}

// YAML returns the registry file contents.
func (s SemanticConventions) YAML() ([]byte, error) {
	return yaml.Marshal(s)
}
