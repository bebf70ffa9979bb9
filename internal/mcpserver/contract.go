package mcpserver

// CardFormatContract describes the canonical card formats that LLM
// consumers should follow when creating or updating cards.
const CardFormatContract = `# Othala Card Format Contract

Every card stored in Othala is a plain file in the notebook directory.
The file extension selects the document type and on-disk format.

## Document types

| Extension        | Type     | Format                  |
|------------------|----------|-------------------------|
| .md              | note     | YAML frontmatter + body |
| .bookmark.json   | bookmark | JSON object             |
| .quiz.json       | quiz     | JSON object             |
| .code.py         | code     | comment frontmatter     |
| .code.js         | code     | comment frontmatter     |
| .json / .yaml    | data     | structured document     |

Extensions are matched longest first: ` + "`" + `report.bookmark.json` + "`" + ` is a
bookmark, not plain data.

## Notes (.md)

` + "```" + `markdown
---
id: weekly-standup-1737379200
title: Weekly standup
tags: [meeting, project-x]
created: 2025-01-20
---

Body text in standard Markdown.
` + "```" + `

Rules:

1. The ` + "`" + `---` + "`" + ` fences must be the first thing in the file.
2. ` + "`" + `title` + "`" + ` is the primary display name; when absent the filename stem is used.
3. ` + "`" + `id` + "`" + ` is assigned on first save; do not invent colliding ids.
4. Field order is preserved on save. Keep ` + "`" + `id` + "`" + ` and ` + "`" + `title` + "`" + ` first.

## Code cards (.code.py, .code.js)

Metadata lives in a comment block delimited by ` + "`" + `# ---` + "`" + ` (or ` + "`" + `// ---` + "`" + `
for JavaScript) at the top of the file:

` + "```" + `python
# ---
# id: fib-demo-1737379200
# title: Fibonacci demo
# ---

def fib(n):
    ...
` + "```" + `

Rendered output for a code card is stored next to it in a companion file
with the ` + "`" + `.output.html` + "`" + ` suffix. Do not write companions directly;
set the ` + "`" + `output` + "`" + ` field instead and the server splits it out.

## Sections and assets

- Top-level directories are sections; ` + "`" + `.` + "`" + ` addresses the notebook root.
- ` + "`" + `.othala/` + "`" + `, ` + "`" + `assets/` + "`" + `, ` + "`" + `.git/` + "`" + ` and ` + "`" + `node_modules/` + "`" + ` are reserved and never hold cards.
- Binary content in fields must be a ` + "`" + `data:<mime>;base64,...` + "`" + ` URI; the
  server extracts it to ` + "`" + `assets/` + "`" + ` and rewrites the field to the file path.
- Reference assets as ` + "`" + `/assets/filename.png` + "`" + `.

## Language policy

File and directory names use English (Latin characters). Field keys are
schema names in English. Field values and body content may use any language.
`
