package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureDefaultExport(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		wantName string
		wantOK   bool
		appended bool
	}{
		{
			name:   "explicit default function",
			code:   "export default function Page() {}\n",
			wantOK: true,
		},
		{
			name:   "explicit export list",
			code:   "const Page = () => null;\nexport {\n  Page as default\n};\n",
			wantOK: true,
		},
		{
			name:     "function declaration",
			code:     "function Page(props) {\n  return null;\n}\n",
			wantName: "Page",
			wantOK:   true,
			appended: true,
		},
		{
			name:     "exported function declaration",
			code:     "export function Home() {}\n",
			wantName: "Home",
			wantOK:   true,
			appended: true,
		},
		{
			name:     "async function",
			code:     "async function Load() {}\n",
			wantName: "Load",
			wantOK:   true,
			appended: true,
		},
		{
			name:     "const arrow",
			code:     "const About = (props) => null;\n",
			wantName: "About",
			wantOK:   true,
			appended: true,
		},
		{
			name:     "let binding",
			code:     "let Blog = function () {};\n",
			wantName: "Blog",
			wantOK:   true,
			appended: true,
		},
		{
			name:     "var binding",
			code:     "var Legacy = function () {};\n",
			wantName: "Legacy",
			wantOK:   true,
			appended: true,
		},
		{
			name:     "function beats an earlier const",
			code:     "const title = \"x\";\nfunction Page() {}\n",
			wantName: "Page",
			wantOK:   true,
			appended: true,
		},
		{
			name:     "first function wins",
			code:     "function Header() {}\nfunction Page() {}\n",
			wantName: "Header",
			wantOK:   true,
			appended: true,
		},
		{
			name:     "const beats let and var",
			code:     "var a = 1;\nlet b = 2;\nconst c = 3;\n",
			wantName: "c",
			wantOK:   true,
			appended: true,
		},
		{
			name:     "indented declarations do not count",
			code:     "if (true) {\n  function Inner() {}\n}\nconst Outer = 1;\n",
			wantName: "Outer",
			wantOK:   true,
			appended: true,
		},
		{
			name:   "no bindings",
			code:   "console.log(\"side effect\");\n",
			wantOK: false,
		},
		{
			name:   "only indented bindings",
			code:   "{\n  const x = 1;\n}\n",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, name, ok := EnsureDefaultExport(tt.code)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, name)
			if tt.appended {
				assert.Equal(t, tt.code+"\nexport default "+tt.wantName+";\n", out)
			} else {
				assert.Equal(t, tt.code, out)
			}
		})
	}
}

func TestHasDefaultExport(t *testing.T) {
	assert.True(t, HasDefaultExport("export default Page;"))
	assert.True(t, HasDefaultExport("export { a, Page as default };"))
	assert.False(t, HasDefaultExport("export { Page };"))
	assert.False(t, HasDefaultExport("const exportDefault = 1;"))
}
