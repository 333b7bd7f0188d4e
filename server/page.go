package server

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; color: #1f2937; }
h1 { font-size: 1.5rem; }
textarea, .output { width: 100%; box-sizing: border-box; border: 1px solid #d1d5db; border-radius: 6px; padding: .6rem; font: inherit; }
.output { min-height: 4rem; white-space: pre-wrap; background: #f9fafb; }
button { margin: .75rem 0 1.25rem; padding: .5rem 1.25rem; border: 0; border-radius: 6px; background: #f97316; color: #fff; font: inherit; cursor: pointer; }
label { display: block; font-weight: 600; margin-bottom: .35rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Description}}</p>
<form method="post" action="/">
<label for="query">Question</label>
<textarea id="query" name="query" rows="2" placeholder="{{.Placeholder}}">{{.Query}}</textarea>
<button type="submit">Submit</button>
</form>
<label>Answer</label>
<div class="output" id="output">{{.Output}}</div>
</body>
</html>
`
