package relay

// indexHTML is the static viewer page. The inline script reloads the image
// when the stream connection drops, so clients recover from a server restart
// without a manual refresh.
const indexHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Camera Stream</title>
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>
        body { font-family: Arial, sans-serif; text-align: center; background-color: #1a1a1a; color: white; }
        h1 { color: #4CAF50; }
        img { max-width: 100%; height: auto; border: 2px solid #333; border-radius: 10px; }
    </style>
</head>
<body>
    <h1>Camera Stream</h1>
    <img id="camera-feed" src="/stream" alt="Camera Stream">
    <p>Live camera feed</p>
    <script>
        var feed = document.getElementById('camera-feed');
        feed.onerror = function() {
            setTimeout(function() { feed.src = '/stream?' + Date.now(); }, 1000);
        };
    </script>
</body>
</html>
`

const notFoundHTML = `<html><body><h1>404 - Not Found</h1></body></html>`
