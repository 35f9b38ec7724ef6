package schema

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestBuildSchema(t *testing.T) {
	root := &cobra.Command{Use: "btcops"}
	child := &cobra.Command{Use: "address", Short: "address cmds"}
	leaf := &cobra.Command{
		Use:         "new",
		Aliases:     []string{"generate"},
		Short:       "generate a receiving address",
		Annotations: map[string]string{MutatingAnnotation: "true"},
		Run:         func(*cobra.Command, []string) {},
	}
	leaf.Flags().Bool("testnet", false, "use testnet")
	_ = leaf.Flags().SetAnnotation("testnet", EnvAnnotation, []string{"BTCOPS_TESTNET"})
	leaf.Flags().String("label", "", "address label")
	_ = leaf.MarkFlagRequired("label")
	child.AddCommand(leaf)
	root.AddCommand(child)

	s, err := Build(root, "address generate")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if s.Path != "btcops address new" {
		t.Fatalf("unexpected path: %s", s.Path)
	}
	if !s.Mutating {
		t.Fatal("expected mutating annotation to be reported")
	}
	if len(s.Flags) != 2 || s.Flags[0].Name != "label" || !s.Flags[0].Required {
		t.Fatalf("unexpected flags: %+v", s.Flags)
	}
	if s.Flags[1].Env != "BTCOPS_TESTNET" {
		t.Fatalf("expected env annotation, got %+v", s.Flags[1])
	}
}

func TestBuildSchemaUnknownPath(t *testing.T) {
	root := &cobra.Command{Use: "btcops"}
	if _, err := Build(root, "nope"); err == nil {
		t.Fatal("expected unknown command error")
	}
}
