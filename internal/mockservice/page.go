package mockservice

// TestPage is a scrollable page served at /page for browser recording runs.
const TestPage = `<!DOCTYPE html>
<html>
<head>
    <title>vstream recording test page</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            max-width: 800px;
            margin: 50px auto;
            padding: 20px;
        }
        .block { height: 400px; border-bottom: 1px solid #ddd; }
        button { padding: 12px 24px; font-size: 16px; }
    </style>
</head>
<body>
    <h1>vstream recording test page</h1>
    <button id="counter" onclick="this.textContent = 'clicked ' + (++window.clicks)">click me</button>
    <div class="block">section one</div>
    <div class="block">section two</div>
    <div class="block">section three</div>
    <script>window.clicks = 0;</script>
</body>
</html>
`
