package analyzer

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// WeightedPattern is one lexical signal with its fixed point weight.
type WeightedPattern struct {
	Label   string
	Pattern *regexp.Regexp
	Points  int
}

// DomainPattern maps a technical domain label to its detection pattern.
type DomainPattern struct {
	Label   string
	Pattern *regexp.Regexp
}

// PatternTables holds the scope/risk/domain signal tables. Treated as
// immutable configuration data injected at construction, so per-mission or
// per-tenant overrides never interfere across missions.
type PatternTables struct {
	Scope  []WeightedPattern
	Risk   []WeightedPattern
	Domain []DomainPattern
}

// Scope indicator weights range 4-15 points, risk factor weights 4-10.
// Tables are ranked: heavier signals first so explanations surface the
// strongest match order.
func defaultPatternTables() *PatternTables {
	return &PatternTables{
		Scope: []WeightedPattern{
			{"full-stack", regexp.MustCompile(`(?i)\bfull[- ]stack\b`), 15},
			{"from-scratch", regexp.MustCompile(`(?i)\bfrom scratch\b|\bgreenfield\b|\bbrand[- ]new (?:app|application|system|project)\b`), 12},
			{"complete-rewrite", regexp.MustCompile(`(?i)\b(?:complete|total|full) rewrite\b|\brewrite (?:the )?(?:entire|whole)\b`), 12},
			{"end-to-end", regexp.MustCompile(`(?i)\bend[- ]to[- ]end\b`), 10},
			{"multi-tenant", regexp.MustCompile(`(?i)\bmulti[- ]tenant\b`), 10},
			{"production-ready", regexp.MustCompile(`(?i)\bproduction[- ](?:ready|grade)\b`), 8},
			{"real-time", regexp.MustCompile(`(?i)\breal[- ]time\b|\blive updates?\b`), 8},
			{"cross-platform", regexp.MustCompile(`(?i)\bcross[- ]platform\b`), 8},
			{"large-refactor", regexp.MustCompile(`(?i)\brefactor (?:the )?(?:entire|whole|all)\b`), 8},
			{"scalable", regexp.MustCompile(`(?i)\bscalab(?:le|ility)\b|\bhigh[- ]availability\b`), 6},
			{"migration", regexp.MustCompile(`(?i)\bmigrat(?:e|ion|ing)\b`), 6},
			{"integration", regexp.MustCompile(`(?i)\bintegrat(?:e|ion|ing)\b`), 5},
			{"mvp", regexp.MustCompile(`(?i)\bmvp\b|\bminimum viable\b`), 4},
			{"prototype", regexp.MustCompile(`(?i)\bprototype\b|\bproof[- ]of[- ]concept\b|\bpoc\b`), 4},
		},
		Risk: []WeightedPattern{
			{"payment-processing", regexp.MustCompile(`(?i)\bpayments?\b|\bbilling\b|\bstripe\b|\bcheckout\b`), 10},
			{"data-loss", regexp.MustCompile(`(?i)\bdata loss\b|\bdestructive\b|\bdrop table\b|\bdelete all\b`), 9},
			{"database-migration", regexp.MustCompile(`(?i)\b(?:database|db|schema) migrations?\b|\bmigrate (?:the )?(?:database|schema|data)\b`), 8},
			{"breaking-change", regexp.MustCompile(`(?i)\bbreaking changes?\b|\bbackwards?[- ]incompatib\w+\b`), 8},
			{"security-concerns", regexp.MustCompile(`(?i)\bsecurity\b|\bauth(?:entication|orization)?\b|\boauth\b|\brbac\b|\bpermissions?\b|\bencryption\b`), 7},
			{"concurrency", regexp.MustCompile(`(?i)\bconcurren(?:t|cy)\b|\brace conditions?\b|\bparallel\b|\bthread[- ]safe\b`), 7},
			{"compliance", regexp.MustCompile(`(?i)\bgdpr\b|\bhipaa\b|\bpci\b|\bcompliance\b|\baudit(?:ing)?\b`), 7},
			{"performance-critical", regexp.MustCompile(`(?i)\bperformance[- ]critical\b|\blow[- ]latency\b|\boptimiz(?:e|ation)\b`), 6},
			{"legacy-code", regexp.MustCompile(`(?i)\blegacy\b|\bdeprecated\b|\btechnical debt\b`), 6},
			{"infrastructure-change", regexp.MustCompile(`(?i)\binfrastructure\b|\bdeployment pipeline\b|\bci/cd\b`), 6},
			{"third-party-dependency", regexp.MustCompile(`(?i)\bthird[- ]party\b|\bexternal (?:api|service)s?\b|\bvendor\b`), 5},
			{"untested-area", regexp.MustCompile(`(?i)\bno tests?\b|\buntested\b|\bmissing coverage\b`), 4},
		},
		Domain: []DomainPattern{
			{"frontend", regexp.MustCompile(`(?i)\bfront[- ]?end\b|\bui\b|\breact\b|\bvue\b|\bangular\b|\bcss\b|\bcomponents?\b|\bdashboard\b|\bwebview\b`)},
			{"backend", regexp.MustCompile(`(?i)\bback[- ]?end\b|\bapi\b|\bserver\b|\bendpoints?\b|\brest\b|\bgraphql\b|\bmicroservices?\b`)},
			{"database", regexp.MustCompile(`(?i)\bdatabases?\b|\bsql\b|\bpostgres\w*\b|\bmysql\b|\bsqlite\b|\bmongo\w*\b|\bredis\b|\bschema\b`)},
			{"mobile", regexp.MustCompile(`(?i)\bmobile\b|\bios\b|\bandroid\b|\bflutter\b|\breact native\b`)},
			{"devops", regexp.MustCompile(`(?i)\bdocker\b|\bkubernetes\b|\bk8s\b|\bterraform\b|\bci/cd\b|\bpipelines?\b|\bdeploy(?:ment)?\b`)},
			{"ml", regexp.MustCompile(`(?i)\bmachine learning\b|\bml\b|\bllm\b|\bneural\b|\bmodel training\b|\bembeddings?\b`)},
			{"blockchain", regexp.MustCompile(`(?i)\bblockchain\b|\bsmart contracts?\b|\bweb3\b|\bsolidity\b|\bethereum\b`)},
		},
	}
}

// patternFile is the YAML shape of a pattern-table override file.
type patternFile struct {
	Scope []struct {
		Label   string `yaml:"label"`
		Pattern string `yaml:"pattern"`
		Points  int    `yaml:"points"`
	} `yaml:"scope"`
	Risk []struct {
		Label   string `yaml:"label"`
		Pattern string `yaml:"pattern"`
		Points  int    `yaml:"points"`
	} `yaml:"risk"`
	Domain []struct {
		Label   string `yaml:"label"`
		Pattern string `yaml:"pattern"`
	} `yaml:"domain"`
}

// LoadPatternTables reads a YAML pattern-table override file. Sections left
// empty in the file keep their built-in defaults.
func LoadPatternTables(path string) (*PatternTables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern file %s: %w", path, err)
	}

	var pf patternFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse pattern file %s: %w", path, err)
	}

	tables := defaultPatternTables()

	if len(pf.Scope) > 0 {
		tables.Scope = tables.Scope[:0]
		for _, p := range pf.Scope {
			re, err := regexp.Compile(p.Pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid scope pattern %q: %w", p.Label, err)
			}
			tables.Scope = append(tables.Scope, WeightedPattern{Label: p.Label, Pattern: re, Points: p.Points})
		}
	}

	if len(pf.Risk) > 0 {
		tables.Risk = tables.Risk[:0]
		for _, p := range pf.Risk {
			re, err := regexp.Compile(p.Pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid risk pattern %q: %w", p.Label, err)
			}
			tables.Risk = append(tables.Risk, WeightedPattern{Label: p.Label, Pattern: re, Points: p.Points})
		}
	}

	if len(pf.Domain) > 0 {
		tables.Domain = tables.Domain[:0]
		for _, p := range pf.Domain {
			re, err := regexp.Compile(p.Pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid domain pattern %q: %w", p.Label, err)
			}
			tables.Domain = append(tables.Domain, DomainPattern{Label: p.Label, Pattern: re})
		}
	}

	return tables, nil
}
