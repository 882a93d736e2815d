package nodepkg

import (
	"encoding/json"
	"testing"
)

func TestPackageJSONMainModule(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantMain   string
		wantModule string
	}{
		{
			name:       "plain commonjs",
			raw:        `{"name":"lodash","main":"index.js"}`,
			wantMain:   "index.js",
			wantModule: "",
		},
		{
			name:       "dual main+module",
			raw:        `{"name":"react","main":"index.js","module":"index.mjs"}`,
			wantMain:   "index.js",
			wantModule: "index.mjs",
		},
		{
			name:       "es2015 fallback",
			raw:        `{"name":"rxjs","main":"index.js","es2015":"_esm2015/index.js"}`,
			wantMain:   "index.js",
			wantModule: "_esm2015/index.js",
		},
		{
			name:       "type module promotes main to module",
			raw:        `{"name":"nanoid","type":"module","main":"index.js"}`,
			wantMain:   "",
			wantModule: "index.js",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pkg PackageJSON
			if err := json.Unmarshal([]byte(tt.raw), &pkg); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if pkg.Main != tt.wantMain {
				t.Errorf("Main = %q, want %q", pkg.Main, tt.wantMain)
			}
			if pkg.Module != tt.wantModule {
				t.Errorf("Module = %q, want %q", pkg.Module, tt.wantModule)
			}
		})
	}
}

func TestPackageJSONSideEffectsFalse(t *testing.T) {
	var pkg PackageJSON
	raw := `{"name":"lib","sideEffects":false}`
	if err := json.Unmarshal([]byte(raw), &pkg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !pkg.SideEffectsFalse {
		t.Errorf("SideEffectsFalse = false, want true")
	}
}

func TestPackageJSONExportsObject(t *testing.T) {
	var pkg PackageJSON
	raw := `{"name":"lib","exports":{".":"./index.js","./utils":"./utils.js"}}`
	if err := json.Unmarshal([]byte(raw), &pkg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	v, ok := pkg.Exports.Get(".")
	if !ok || v != "./index.js" {
		t.Errorf("Exports[.] = %v, ok=%v, want ./index.js", v, ok)
	}
}
