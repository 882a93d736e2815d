package optimize

import "testing"

func TestNeedsInteropDetectsCommonJS(t *testing.T) {
	needs, err := NeedsInterop("index.js", `module.exports = function () { return 1 }`)
	if err != nil {
		t.Fatal(err)
	}
	if !needs {
		t.Fatal("expected module.exports source to be detected as CommonJS")
	}
}

func TestNeedsInteropFalseForESM(t *testing.T) {
	needs, err := NeedsInterop("index.js", `export default function () { return 1 }`)
	if err != nil {
		t.Fatal(err)
	}
	if needs {
		t.Fatal("expected an ES module export to not need interop")
	}
}
