package planner

import (
	"fmt"
	"strings"

	"missionctl/pkg/proto"
)

// Strategy tags recorded in the plan.
const (
	StrategyFeatureBased = "feature-based"
	StrategyDomainBased  = "domain-based"
	StrategyRiskBased    = "risk-based"
)

// phaseDraft is a partitioner's intermediate output before ids and token
// estimates are assigned.
type phaseDraft struct {
	name        string
	description string
}

// strategy partitions complexity metrics into ordered phase drafts.
type strategy interface {
	tag() string
	partition(m *proto.ComplexityMetrics, target int) []phaseDraft
}

// selectStrategy picks the partitioner from the metrics alone:
// multi-domain work layers by domain, risky single-domain work front-loads
// the risks, everything else chunks by feature.
func selectStrategy(m *proto.ComplexityMetrics) strategy {
	switch {
	case len(m.TechnicalDomains) >= 2:
		return domainStrategy{}
	case len(m.RiskFactors) >= 2:
		return riskStrategy{}
	default:
		return featureStrategy{}
	}
}

// domainLayerOrder is the build order for domain phases: data layer first,
// then services, then surfaces, then operational concerns.
var domainLayerOrder = []string{"database", "backend", "frontend", "mobile", "ml", "blockchain", "devops"}

type domainStrategy struct{}

func (domainStrategy) tag() string { return StrategyDomainBased }

func (domainStrategy) partition(m *proto.ComplexityMetrics, _ int) []phaseDraft {
	detected := make(map[string]bool, len(m.TechnicalDomains))
	for _, d := range m.TechnicalDomains {
		detected[d] = true
	}

	drafts := make([]phaseDraft, 0, len(detected)+1)
	for _, domain := range domainLayerOrder {
		if !detected[domain] {
			continue
		}
		drafts = append(drafts, phaseDraft{
			name:        domainLabel(domain),
			description: fmt.Sprintf("Implement the %s work: %s.", domainLabel(domain), featureSummary(m, 4)),
		})
	}

	drafts = append(drafts, phaseDraft{
		name:        "Verification",
		description: "Run the full verification pass: tests, integration checks, and a review of every file touched in earlier phases.",
	})
	return drafts
}

func domainLabel(domain string) string {
	switch domain {
	case "database":
		return "data layer"
	case "backend":
		return "API and services"
	case "frontend":
		return "UI"
	case "mobile":
		return "mobile client"
	case "devops":
		return "deployment and infrastructure"
	case "ml":
		return "model and pipeline"
	case "blockchain":
		return "contract layer"
	default:
		return domain
	}
}

type riskStrategy struct{}

func (riskStrategy) tag() string { return StrategyRiskBased }

func (riskStrategy) partition(m *proto.ComplexityMetrics, target int) []phaseDraft {
	drafts := []phaseDraft{{
		name: "Stabilization",
		description: fmt.Sprintf("Address the risk factors first (%s): establish safety nets, migrations, and guards before feature work.",
			strings.Join(m.RiskFactors, ", ")),
	}}

	remaining := target - 1
	if remaining < 1 {
		remaining = 1
	}
	drafts = append(drafts, chunkFeatures(m, remaining)...)
	return drafts
}

type featureStrategy struct{}

func (featureStrategy) tag() string { return StrategyFeatureBased }

func (featureStrategy) partition(m *proto.ComplexityMetrics, target int) []phaseDraft {
	return chunkFeatures(m, target)
}

// chunkFeatures distributes the detected features into n ordered chunks.
func chunkFeatures(m *proto.ComplexityMetrics, n int) []phaseDraft {
	if n < 1 {
		n = 1
	}

	features := m.Features
	if len(features) == 0 {
		features = []string{"the requested change"}
	}

	chunks := make([][]string, n)
	for i, f := range features {
		chunks[i*n/len(features)] = append(chunks[i*n/len(features)], f)
	}

	drafts := make([]phaseDraft, 0, n)
	for _, chunk := range chunks {
		if len(chunk) == 0 {
			chunk = []string{"remaining implementation work"}
		}
		drafts = append(drafts, phaseDraft{
			name:        chunkLabel(chunk),
			description: fmt.Sprintf("Implement: %s.", strings.Join(chunk, "; ")),
		})
	}
	return drafts
}

// chunkLabel names a chunk after its leading feature.
func chunkLabel(chunk []string) string {
	label := chunk[0]
	if len(label) > 40 {
		label = label[:40] + "..."
	}
	if len(chunk) > 1 {
		label = fmt.Sprintf("%s (+%d more)", label, len(chunk)-1)
	}
	return label
}

// featureSummary is a short comma list of the first n features.
func featureSummary(m *proto.ComplexityMetrics, n int) string {
	if len(m.Features) == 0 {
		return "the requested capabilities"
	}
	if len(m.Features) > n {
		return strings.Join(m.Features[:n], ", ") + ", ..."
	}
	return strings.Join(m.Features, ", ")
}
