package jsworker

// preludeJS installs the worker-side globals: the message port, console
// and timers. Go supplies __postMessage, __console, __timerRegister and
// __timerClear.
const preludeJS = `
(function() {
	globalThis.self = globalThis;

	var listeners = [];
	globalThis.postMessage = function(msg) {
		__postMessage(JSON.stringify(msg));
	};
	globalThis.addEventListener = function(type, fn) {
		if (type === 'message' && typeof fn === 'function') listeners.push(fn);
	};
	globalThis.removeEventListener = function(type, fn) {
		if (type !== 'message') return;
		var i = listeners.indexOf(fn);
		if (i >= 0) listeners.splice(i, 1);
	};
	globalThis.__hasMessageHandler = function() {
		return typeof globalThis.onmessage === 'function' || listeners.length > 0;
	};
	globalThis.__dispatch = function(msg) {
		var ev = { type: 'message', data: msg };
		try {
			if (typeof globalThis.onmessage === 'function') globalThis.onmessage(ev);
			for (var i = 0; i < listeners.length; i++) listeners[i](ev);
		} catch (e) {
			__console('error', 'uncaught in onmessage: ' + (e && e.stack ? e.stack : String(e)));
		}
	};

	var levels = ['log', 'info', 'warn', 'error', 'debug'];
	var con = {};
	for (var i = 0; i < levels.length; i++) {
		(function(lvl) {
			con[lvl] = function() {
				var parts = [];
				for (var j = 0; j < arguments.length; j++) {
					var arg = arguments[j];
					if (typeof arg === 'object' && arg !== null) {
						try { parts.push(JSON.stringify(arg)); } catch (e) { parts.push('[object Object]'); }
					} else {
						parts.push(String(arg));
					}
				}
				__console(lvl, parts.join(' '));
			};
		})(levels[i]);
	}
	globalThis.console = con;

	globalThis.__timerCallbacks = {};
	globalThis.setTimeout = function(fn, delay) {
		if (typeof fn !== 'function') return 0;
		var args = Array.prototype.slice.call(arguments, 2);
		var id = __timerRegister(delay || 0, false);
		globalThis.__timerCallbacks[id] = { fn: fn, args: args };
		return id;
	};
	globalThis.setInterval = function(fn, interval) {
		if (typeof fn !== 'function') return 0;
		var args = Array.prototype.slice.call(arguments, 2);
		var id = __timerRegister(interval || 0, true);
		globalThis.__timerCallbacks[id] = { fn: fn, args: args, interval: true };
		return id;
	};
	globalThis.clearTimeout = globalThis.clearInterval = function(id) {
		if (typeof id !== 'number') return;
		__timerClear(id);
		delete globalThis.__timerCallbacks[id];
	};
})();
`
