package din

import "testing"

func TestIndentationNesting(t *testing.T) {
	src := "sound foo\n  file \"a.ogg\"\n  start 0\nsound bar\n  file b.ogg\n"
	nodes, err := Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("got %d top-level nodes, want 2", len(nodes))
	}
	if nodes[0].Items[0] != "sound" || nodes[0].Items[1] != "foo" {
		t.Fatalf("unexpected first node: %+v", nodes[0].Items)
	}
	if len(nodes[0].Children) != 2 {
		t.Fatalf("got %d children, want 2", len(nodes[0].Children))
	}
	if nodes[0].Children[0].Items[0] != "file" || nodes[0].Children[0].Items[1] != "a.ogg" {
		t.Fatalf("unexpected child: %+v", nodes[0].Children[0].Items)
	}
}

func TestBlankLinesDoNotBreakNesting(t *testing.T) {
	src := "flow main\n\n  node start\n    done\n"
	nodes, err := Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("got %d top-level nodes, want 1", len(nodes))
	}
	if len(nodes[0].Children) != 1 || nodes[0].Children[0].Items[0] != "node" {
		t.Fatalf("unexpected children: %+v", nodes[0].Children)
	}
	grandchild := nodes[0].Children[0].Children
	if len(grandchild) != 1 || grandchild[0].Items[0] != "done" {
		t.Fatalf("unexpected grandchild: %+v", grandchild)
	}
}

func TestDedentClosesMultipleLevels(t *testing.T) {
	src := "flow main\n  node a\n    done\n  node b\n    done\nflow other\n  node c\n    done\n"
	nodes, err := Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("got %d top-level nodes, want 2", len(nodes))
	}
	if len(nodes[0].Children) != 2 {
		t.Fatalf("first flow got %d children, want 2", len(nodes[0].Children))
	}
	if nodes[1].Items[1] != "other" {
		t.Fatalf("second top-level node should be the second flow, got %+v", nodes[1].Items)
	}
}

func TestQuotedStringsKeepSpaces(t *testing.T) {
	nodes, err := Parse(`file "my song.ogg"` + "\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(nodes) != 1 || len(nodes[0].Items) != 2 {
		t.Fatalf("unexpected parse result: %+v", nodes)
	}
	if nodes[0].Items[1] != "my song.ogg" {
		t.Fatalf("got %q, want \"my song.ogg\"", nodes[0].Items[1])
	}
}

func TestUnterminatedQuoteIsAnError(t *testing.T) {
	if _, err := Parse(`file "unterminated` + "\n"); err == nil {
		t.Fatal("expected an error for an unterminated quoted string")
	}
}

func TestConsumeRequiredPrefixedChild(t *testing.T) {
	nodes, err := Parse("sequence foo\n  length 4\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	n := nodes[0]
	length, err := n.ConsumeRequiredPrefixed("length")
	if err != nil {
		t.Fatalf("consume required: %v", err)
	}
	if length.Items[1] != "4" {
		t.Fatalf("got %q, want \"4\"", length.Items[1])
	}
	if err := n.FinishParsing(); err != nil {
		t.Fatalf("expected no leftover children, got: %v", err)
	}
}

func TestConsumeRequiredPrefixedMissingIsError(t *testing.T) {
	nodes, err := Parse("sequence foo\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := nodes[0].ConsumeRequiredPrefixed("length"); err == nil {
		t.Fatal("expected an error for a missing required child")
	}
}

func TestConsumeOptionalPrefixedDuplicateIsError(t *testing.T) {
	nodes, err := Parse("sound foo\n  start 0\n  start 1\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := nodes[0].ConsumeOptionalPrefixed("start"); err == nil {
		t.Fatal("expected an error for a duplicate child")
	}
}

func TestFinishParsingErrorsOnLeftoverChildren(t *testing.T) {
	nodes, err := Parse("sound foo\n  bogus 1\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := nodes[0].FinishParsing(); err == nil {
		t.Fatal("expected an error for an unconsumed child")
	}
}
