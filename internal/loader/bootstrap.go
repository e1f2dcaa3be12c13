package loader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cryguy/fontworker/internal/core"
	"github.com/evanw/esbuild/pkg/api"
)

// engineMarker is replaced by the engine source in the worker shell.
const engineMarker = `'prototypo.js';`

// workerShell is the body of the worker script. It resolves the engine,
// answers the controller's messages and announces itself with "ready".
const workerShell = `function() {
	var engineModule = { exports: {} };
	var declared = (function(module, exports) {
		'prototypo.js';
		return typeof prototypo !== 'undefined' ? prototypo : undefined;
	})(engineModule, engineModule.exports);

	var engine = engineModule.exports;
	if (engine && engine.default && typeof engine.parametricFont !== 'function') engine = engine.default;
	if (!engine || typeof engine.parametricFont !== 'function') engine = declared || self.prototypo || engine;
	var font = null;

	var alphabet = 'ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/';
	function toBase64(bytes) {
		var out = '';
		var i;
		for (i = 0; i + 2 < bytes.length; i += 3) {
			var n = (bytes[i] << 16) | (bytes[i + 1] << 8) | bytes[i + 2];
			out += alphabet[(n >> 18) & 63] + alphabet[(n >> 12) & 63] + alphabet[(n >> 6) & 63] + alphabet[n & 63];
		}
		var rest = bytes.length - i;
		if (rest === 1) {
			var a = bytes[i] << 16;
			out += alphabet[(a >> 18) & 63] + alphabet[(a >> 12) & 63] + '==';
		} else if (rest === 2) {
			var b = (bytes[i] << 16) | (bytes[i + 1] << 8);
			out += alphabet[(b >> 18) & 63] + alphabet[(b >> 12) & 63] + alphabet[(b >> 6) & 63] + '=';
		}
		return out;
	}

	function encode(v) {
		if (v === null || v === undefined) return null;
		if (typeof v === 'string') return v;
		if (v instanceof ArrayBuffer) return toBase64(new Uint8Array(v));
		if (ArrayBuffer.isView(v)) return toBase64(new Uint8Array(v.buffer, v.byteOffset, v.byteLength));
		if (Array.isArray(v)) return toBase64(v);
		throw new TypeError('engine returned ' + typeof v + ' where bytes were expected');
	}

	function failure(e) {
		return e && e.message ? e.message : String(e);
	}

	function reply(type, fn, post) {
		var data;
		try {
			data = fn();
		} catch (e) {
			postMessage({ type: type, error: failure(e) });
			return;
		}
		var send = function(value) {
			try {
				postMessage({ type: type, data: post ? post(value) : value });
			} catch (e) {
				postMessage({ type: type, error: failure(e) });
			}
		};
		if (data && typeof data.then === 'function') {
			data.then(send, function(e) { postMessage({ type: type, error: failure(e) }); });
			return;
		}
		send(data);
	}

	function loaded() {
		if (!font) throw new Error('no font loaded');
		return font;
	}

	self.onmessage = function(e) {
		var msg = e.data;
		switch (msg.type) {
		case 'font':
			reply('solvingOrders', function() {
				if (!engine || typeof engine.parametricFont !== 'function') {
					throw new Error('engine does not provide parametricFont');
				}
				font = engine.parametricFont(msg.data);
				return typeof font.solvingOrders === 'function' ? font.solvingOrders() : {};
			}, function(orders) { return orders || {}; });
			break;
		case 'update':
			reply('update', function() { return loaded().update(msg.data); }, encode);
			break;
		case 'subset':
			reply('subset', function() { return loaded().setSubset(msg.data); }, encode);
			break;
		case 'svgFont':
			reply('svgFont', function() { return loaded().toSVG(); });
			break;
		case 'otfFont':
			var name = msg.data;
			reply('otfFont', function() { return loaded().toOTF(name); }, function(bytes) {
				return { name: name, data: encode(bytes) };
			});
			break;
		}
	};

	postMessage({ type: 'ready' });
}`

// NormalizeEngine rewrites engine source into CommonJS form. ES module
// exports land on module.exports; CommonJS, UMD and plain scripts pass
// through unchanged, so their top-level declarations stay visible to the
// shell function they are pasted into.
func NormalizeEngine(source string) (string, error) {
	result := api.Transform(source, api.TransformOptions{
		Format:     api.FormatCommonJS,
		Target:     api.ESNext,
		Sourcefile: "prototypo.js",
	})
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, m := range result.Errors {
			text := m.Text
			if m.Location != nil {
				text = fmt.Sprintf("%s:%d: %s", m.Location.File, m.Location.Line, text)
			}
			msgs = append(msgs, text)
		}
		return "", &core.ParseError{What: "engine", Err: errors.New(strings.Join(msgs, "; "))}
	}
	return string(result.Code), nil
}

// BuildScript produces the worker bootstrap payload for engine source.
func BuildScript(engineSource string) (string, error) {
	code, err := NormalizeEngine(engineSource)
	if err != nil {
		return "", err
	}
	return fillShell(workerShell, code)
}

// fillShell substitutes code for the single engine marker of shell and
// turns the shell into an immediately invoked function. The trailing
// comment neutralizes anything a host appends to the script.
func fillShell(shell, code string) (string, error) {
	if strings.Count(shell, engineMarker) != 1 {
		return "", core.ErrBootstrapTemplate
	}
	return "(" + strings.Replace(shell, engineMarker, code, 1) + ")();//", nil
}
