//go:build unix

package fsx

import (
	"os"
	"syscall"
	"testing"
)

func TestRename_CrossDeviceEXDEV(t *testing.T) {
	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EXDEV}
	}
	defer func() { renameFunc = old }()

	err := Rename("/a", "/b")
	if err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if !IsCrossDevice(err) {
		t.Fatalf("期望 CrossDeviceError，实际：%T %v", err, err)
	}
}

func TestRenameNoReplace_CrossDeviceEXDEV(t *testing.T) {
	old := renameNoReplaceFunc
	renameNoReplaceFunc = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EXDEV}
	}
	defer func() { renameNoReplaceFunc = old }()

	if err := RenameNoReplace("/a", "/b"); !IsCrossDevice(err) {
		t.Fatalf("期望 CrossDeviceError，实际：%T %v", err, err)
	}
}

func TestIsEXDEV(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"bare_errno", syscall.EXDEV, true},
		{"link_error", &os.LinkError{Op: "rename", Old: "/a", New: "/b", Err: syscall.EXDEV}, true},
		{"other_errno", &os.LinkError{Op: "rename", Old: "/a", New: "/b", Err: syscall.EACCES}, false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		if got := isEXDEV(tc.err); got != tc.want {
			t.Fatalf("%s：期望 %v，实际 %v", tc.name, tc.want, got)
		}
	}
}
