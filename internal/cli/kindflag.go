package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/studiometa/productive-tools-sub004/internal/cache"
)

// kindValue is a pflag.Value accepting one entity type.
type kindValue struct {
	kind *cache.Kind
}

var _ pflag.Value = (*kindValue)(nil)

func newKindValue(k *cache.Kind) *kindValue {
	return &kindValue{kind: k}
}

func (v *kindValue) String() string {
	if v.kind == nil {
		return ""
	}
	return v.kind.String()
}

func (v *kindValue) Set(s string) error {
	k, err := cache.ParseKind(s)
	if err != nil {
		return err
	}
	*v.kind = k
	return nil
}

func (v *kindValue) Type() string { return "type" }

// kindsValue is a pflag.Value accepting a comma-separated list of types.
// Repeating the flag appends.
type kindsValue struct {
	kinds *[]cache.Kind
}

func newKindsValue(k *[]cache.Kind) *kindsValue {
	return &kindsValue{kinds: k}
}

func (v *kindsValue) String() string {
	if v.kinds == nil {
		return ""
	}
	names := make([]string, len(*v.kinds))
	for i, k := range *v.kinds {
		names[i] = k.String()
	}
	return strings.Join(names, ",")
}

func (v *kindsValue) Set(s string) error {
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		k, err := cache.ParseKind(part)
		if err != nil {
			return err
		}
		*v.kinds = append(*v.kinds, k)
	}
	return nil
}

func (v *kindsValue) Type() string { return "types" }

// parseKinds parses positional type arguments. No arguments means every type.
func parseKinds(args []string) ([]cache.Kind, error) {
	if len(args) == 0 {
		return cache.Kinds, nil
	}
	kinds := make([]cache.Kind, 0, len(args))
	for _, a := range args {
		k, err := cache.ParseKind(a)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func completeKinds(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var out []string
	for _, k := range cache.Kinds {
		if strings.HasPrefix(k.String(), toComplete) {
			out = append(out, k.String())
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
