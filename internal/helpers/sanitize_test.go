package helpers

import "testing"

func TestStripHTML_DropsPageChrome(t *testing.T) {
	input := `<html><head><style>p{color:red}</style></head><body>
<header>Site Title</header><nav><a href="/">Home</a></nav>
<article><h1>Deep&nbsp;Learning</h1><p>Neural nets &amp; data.</p></article>
<aside>Related links</aside><footer>Copyright</footer><script>track()</script></body></html>`
	got := StripHTML(input)
	want := "Deep Learning Neural nets & data."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestStripHTML_SeparatesAdjacentCells(t *testing.T) {
	got := StripHTML(`<td>alpha</td><td>beta</td>`)
	if got != "alpha beta" {
		t.Fatalf("expected %q, got %q", "alpha beta", got)
	}
}

func TestStripHTML_PlainTextUnchanged(t *testing.T) {
	in := "already   plain\n\ntext"
	if got := StripHTML(in); got != "already plain text" {
		t.Fatalf("expected collapsed whitespace, got %q", got)
	}
	if got := StripHTML("   "); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestStripHTML_IsFixedPoint(t *testing.T) {
	inputs := []string{
		"Safe sample: x &lt;y and more",
		"a &lt;/div&gt; closer and &lt;!-- comment",
		"R&amp;D at AT&T costs &lt; 5 &amp; rising",
		"literal &amp;lt;b&amp;gt; and &amp;copy;",
		"<p>5 &lt; 6 &amp;&amp; x &gt; y</p>",
		"&lt;script&gt;alert(1)&lt;/script&gt; text",
	}
	for _, in := range inputs {
		once := StripHTML(in)
		if twice := StripHTML(once); twice != once {
			t.Errorf("StripHTML(%q): first pass %q, second pass %q", in, once, twice)
		}
	}
}

func TestStripHTML_KeepsEscapedMarkupAsText(t *testing.T) {
	if got, want := StripHTML("x &lt;y z"), "x &lt;y z"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if got, want := StripHTML("5 &lt; 6 &amp; AT&T"), "5 < 6 & AT&T"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
