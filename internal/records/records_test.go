package records

import (
	"errors"
	"testing"
)

func TestDetectMethod(t *testing.T) {
	cases := []struct {
		name             string
		keyName          string
		uninstallString  string
		windowsInstaller bool
		wantMethod       string
		wantKey          string
	}{
		{
			name:             "msi by flag",
			keyName:          "{23170F69-40C1-2702-2409-000001000000}",
			uninstallString:  `MsiExec.exe /X{23170F69-40C1-2702-2409-000001000000}`,
			windowsInstaller: true,
			wantMethod:       "msi",
			wantKey:          "{23170F69-40C1-2702-2409-000001000000}",
		},
		{
			name:            "msi by product code key without flag",
			keyName:         "{AC76BA86-7AD7-1033-7B44-AC0F074E4100}",
			uninstallString: "",
			wantMethod:      "msi",
			wantKey:         "{AC76BA86-7AD7-1033-7B44-AC0F074E4100}",
		},
		{
			name:            "inno quoted",
			keyName:         "VLC media player_is1",
			uninstallString: `"C:\Program Files\VideoLAN\VLC\unins000.exe"`,
			wantMethod:      "inno",
			wantKey:         `C:\Program Files\VideoLAN\VLC\unins000.exe`,
		},
		{
			name:            "squirrel",
			keyName:         "Discord",
			uninstallString: `C:\Users\jo\AppData\Local\Discord\Update.exe --uninstall -s`,
			wantMethod:      "squirrel",
			wantKey:         `C:\Users\jo\AppData\Local\Discord\Update.exe`,
		},
		{
			name:            "nsis unquoted path with spaces",
			keyName:         "Notepad++",
			uninstallString: `C:\Program Files\Notepad++\uninstall.exe`,
			wantMethod:      "nsis",
			wantKey:         `C:\Program Files\Notepad++\uninstall.exe`,
		},
		{
			name:            "nsis with trailing switch",
			keyName:         "7-Zip",
			uninstallString: `C:\Program Files\7-Zip\Uninstall.exe /S`,
			wantMethod:      "nsis",
			wantKey:         `C:\Program Files\7-Zip\Uninstall.exe`,
		},
		{
			name:            "plain exe fallback",
			keyName:         "SomeTool",
			uninstallString: `"C:\Tools\remove-sometool.exe" --quiet`,
			wantMethod:      "exe",
			wantKey:         `C:\Tools\remove-sometool.exe`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			method, key := detectMethod(tc.keyName, tc.uninstallString, tc.windowsInstaller)
			if method != tc.wantMethod {
				t.Errorf("method: expected %q, got %q", tc.wantMethod, method)
			}
			if key != tc.wantKey {
				t.Errorf("key: expected %q, got %q", tc.wantKey, key)
			}
		})
	}
}

func TestFirstExecutableEmpty(t *testing.T) {
	if got := firstExecutable("   "); got != "" {
		t.Fatalf("expected empty path, got %q", got)
	}
}

type fakeSource struct {
	recs []Record
	keys map[string]string
}

func (f *fakeSource) Records() ([]Record, error) { return f.recs, nil }

func (f *fakeSource) Key(recordID string) (string, error) {
	key, ok := f.keys[recordID]
	if !ok {
		return "", errors.New("unknown record")
	}
	return key, nil
}

func TestCompositeMergesAndDeduplicates(t *testing.T) {
	reg := &fakeSource{
		recs: []Record{
			{ID: `HKLM\...\{A}`, DisplayName: "7-Zip", Version: "23.01", Method: "msi"},
			{ID: `HKLM\...\VLC_is1`, DisplayName: "VLC media player", Version: "3.0.20", Method: "inno"},
		},
	}
	msi := &fakeSource{
		recs: []Record{
			{ID: "{A}", DisplayName: "7-Zip", Version: "23.01", Method: "msi"},
			{ID: "{B}", DisplayName: "Paint.NET", Version: "5.0", Method: "msi"},
		},
	}

	all, err := NewComposite(reg, msi).Records()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records after dedup, got %d: %+v", len(all), all)
	}
	if all[0].ID != `HKLM\...\{A}` {
		t.Errorf("first source should win for duplicates, got %q", all[0].ID)
	}
	if all[2].DisplayName != "Paint.NET" {
		t.Errorf("expected Paint.NET to survive, got %q", all[2].DisplayName)
	}
}

func TestCompositeKeyFallsThrough(t *testing.T) {
	first := &fakeSource{keys: map[string]string{"a": "key-a"}}
	second := &fakeSource{keys: map[string]string{"b": "key-b"}}
	c := NewComposite(first, second)

	key, err := c.Key("b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "key-b" {
		t.Fatalf("expected key-b, got %q", key)
	}

	if _, err := c.Key("missing"); err == nil {
		t.Fatal("expected error for unresolvable record")
	}
}
