package cloudexec

import (
	"errors"
	"testing"
)

func TestGuard_Check(t *testing.T) {
	g := NewGuard()

	tests := []struct {
		name    string
		command string
		blocked bool
	}{
		{"plain command", "go test ./...", false},
		{"git status", "git status --porcelain", false},
		{"list files", "ls -la internal", false},
		{"quoted argument", `git commit -m "fix the parser"`, false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"semicolon chain", "echo hi; rm file", true},
		{"pipe", "cat notes.txt | grep secret", true},
		{"and chain", "make build && make test", true},
		{"backtick", "echo `id`", true},
		{"variable expansion", "echo $HOME", true},
		{"redirect out", "echo data > file.txt", true},
		{"redirect in", "wc -l < file.txt", true},
		{"rm root", "rm -rf /", true},
		{"rm root uppercase", "RM -RF /", true},
		{"rm root extra spaces", "rm   -rf   /", true},
		{"rm home", "rm -rf ~", true},
		{"rm glob", "rm -rf *", true},
		{"rm subdir allowed", "rm -rf build", false},
		{"disk write", "dd if=/dev/zero of=/dev/sda", true},
		{"mkfs", "mkfs.ext4 /dev/sda1", true},
		{"sudo", "sudo apt-get install jq", true},
		{"force push long", "git push --force origin main", true},
		{"force push short", "git push -f origin main", true},
		{"plain push allowed", "git push origin main", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Check(tt.command)
			if tt.blocked && err == nil {
				t.Errorf("Check(%q) = nil, want blocked", tt.command)
			}
			if !tt.blocked && err != nil {
				t.Errorf("Check(%q) = %v, want allowed", tt.command, err)
			}
			if tt.blocked && err != nil && !errors.Is(err, ErrCommandBlocked) {
				t.Errorf("Check(%q) error %v does not wrap ErrCommandBlocked", tt.command, err)
			}
		})
	}
}

func TestGuard_ExtraPatterns(t *testing.T) {
	g := NewGuard("Terraform   Destroy")

	if err := g.Check("terraform destroy -auto-approve"); !errors.Is(err, ErrCommandBlocked) {
		t.Errorf("extra pattern not enforced: %v", err)
	}
	if err := g.Check("terraform plan"); err != nil {
		t.Errorf("unrelated command blocked: %v", err)
	}
}
