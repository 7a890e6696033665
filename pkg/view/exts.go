package view

func extSet(exts ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		s[e] = struct{}{}
	}
	return s
}

var (
	latexExts = extSet(
		".tex", ".ltx", ".sty", ".cls", ".bib", ".bst", ".dtx", ".ins",
	)

	codeExts = extSet(
		".c", ".cc", ".cpp", ".h", ".hpp", ".cs", ".css", ".go", ".html",
		".java", ".js", ".json", ".lua", ".md", ".pl", ".py", ".r", ".rb",
		".rs", ".sh", ".toml", ".ts", ".xml", ".yaml", ".yml",
	)

	// PDF and EPS count as images: figures in LaTeX projects usually
	// ship in those formats.
	imageExts = extSet(
		".bmp", ".eps", ".gif", ".jpeg", ".jpg", ".pdf", ".png", ".svg",
		".webp",
	)
)

func extsFor(f TypeFilter) map[string]struct{} {
	switch f {
	case TypeLatex:
		return latexExts
	case TypeCode:
		return codeExts
	case TypeImage:
		return imageExts
	}
	return nil
}
